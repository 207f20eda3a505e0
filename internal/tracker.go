package internal

// Tracker remembers which element's behavior is executing on a cothread.
type Tracker struct {
	current *Element
}

func NewTracker() *Tracker {
	return &Tracker{}
}

func (t *Tracker) RunWithElement(e *Element, fn func()) {
	prev := t.current
	t.current = e
	defer func() { t.current = prev }()

	fn()
}

func (t *Tracker) Current() *Element {
	return t.current
}
