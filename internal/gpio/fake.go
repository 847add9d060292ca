package gpio

// FakeRelay is a test double that records relay commands.
type FakeRelay struct {
	// On is the current relay state.
	On bool

	// Sets contains every state passed to Set, in order, including
	// redundant writes of the current state.
	Sets []bool

	// SetError, if set, will be returned by Set()
	SetError error

	// Closed tracks if Close was called
	Closed bool
}

// NewFakeRelay creates a FakeRelay in the off state.
func NewFakeRelay() *FakeRelay {
	return &FakeRelay{}
}

// Set records the command and updates the state.
func (f *FakeRelay) Set(on bool) error {
	if f.SetError != nil {
		return f.SetError
	}
	f.Sets = append(f.Sets, on)
	f.On = on
	return nil
}

// Close marks the relay as closed.
func (f *FakeRelay) Close() error {
	f.Closed = true
	return nil
}

// Reset clears recorded commands.
func (f *FakeRelay) Reset() {
	f.On = false
	f.Sets = nil
	f.SetError = nil
	f.Closed = false
}
