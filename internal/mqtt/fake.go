package mqtt

// Message is one recorded publication.
type Message struct {
	Suffix  string
	Payload []byte
	Retain  bool
}

// FakePublisher records published messages for test assertions.
type FakePublisher struct {
	// Messages contains everything published, in order.
	Messages []Message

	// PublishError, if set, will be returned by Publish.
	PublishError error

	// Closed tracks if Close was called.
	Closed bool

	// Connected controls the return value of IsConnected.
	Connected bool
}

// NewFakePublisher creates a FakePublisher for testing.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

// Publish records the message.
func (f *FakePublisher) Publish(suffix string, payload []byte, retain bool) error {
	if f.PublishError != nil {
		return f.PublishError
	}
	f.Messages = append(f.Messages, Message{Suffix: suffix, Payload: payload, Retain: retain})
	return nil
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.Closed = true
	return nil
}

// IsConnected reports whether the fake publisher is "connected".
func (f *FakePublisher) IsConnected() bool {
	return f.Connected
}

// BySuffix returns the recorded messages published to one suffix.
func (f *FakePublisher) BySuffix(suffix string) []Message {
	var out []Message
	for _, m := range f.Messages {
		if m.Suffix == suffix {
			out = append(out, m)
		}
	}
	return out
}

// Reset clears recorded messages.
func (f *FakePublisher) Reset() {
	f.Messages = nil
	f.Closed = false
	f.PublishError = nil
	f.Connected = false
}
