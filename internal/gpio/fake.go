package gpio

// FakeWriter is a test double that records relay writes.
type FakeWriter struct {
	// Writes contains every value passed to Set, in order.
	Writes []bool

	// Closed tracks if Close was called
	Closed bool

	// SetError, if set, will be returned by Set() and the write is not recorded.
	SetError error
}

// NewFakeWriter creates a FakeWriter with no recorded writes.
func NewFakeWriter() *FakeWriter {
	return &FakeWriter{}
}

// Set records the value.
func (f *FakeWriter) Set(on bool) error {
	if f.SetError != nil {
		return f.SetError
	}
	f.Writes = append(f.Writes, on)
	return nil
}

// Close marks the writer as closed.
func (f *FakeWriter) Close() error {
	f.Closed = true
	return nil
}

// Level returns the last written value, false if nothing was written.
func (f *FakeWriter) Level() bool {
	if len(f.Writes) == 0 {
		return false
	}
	return f.Writes[len(f.Writes)-1]
}

// Reset clears recorded writes.
func (f *FakeWriter) Reset() {
	f.Writes = nil
	f.Closed = false
	f.SetError = nil
}
