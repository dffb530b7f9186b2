package types

// Event is an engine-emitted notification with free-form string attributes.
// Events are buffered by the state manager during a call and drained by the
// node once the call commits.
type Event struct {
	Type       string
	Attributes map[string]string
}

// Copy returns a detached copy of the event.
func (e *Event) Copy() *Event {
	if e == nil {
		return nil
	}
	attrs := make(map[string]string, len(e.Attributes))
	for k, v := range e.Attributes {
		attrs[k] = v
	}
	return &Event{Type: e.Type, Attributes: attrs}
}
