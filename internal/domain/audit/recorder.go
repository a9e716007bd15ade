package audit

// Recorder collects audit entries produced by aggregate mutations until a
// repository persists them, in the same transaction as the aggregate itself.
// Embed it in an aggregate root the way domain-event buffers usually are.
type Recorder struct {
	pending []*Entry `gorm:"-"`
}

// Record buffers an entry for the next save
func (r *Recorder) Record(entry *Entry) {
	r.pending = append(r.pending, entry)
}

// Pending returns the buffered entries
func (r *Recorder) Pending() []*Entry {
	return r.pending
}

// ClearPending drops the buffered entries after they have been persisted
func (r *Recorder) ClearPending() {
	r.pending = nil
}
