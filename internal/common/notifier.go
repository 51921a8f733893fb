package common

// Signal is a coalescing change notification. Any number of Notify calls
// between two receives result in a single pending signal, so a slow reader
// never blocks a writer.
type Signal struct {
	c chan struct{}
}

func NewSignal() *Signal {
	return &Signal{c: make(chan struct{}, 1)}
}

func (s *Signal) Notify() {
	select {
	case s.c <- struct{}{}:
	default:
	}
}

func (s *Signal) C() <-chan struct{} {
	return s.c
}
