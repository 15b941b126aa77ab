package cache

// Metrics receives cache lifecycle events.
type Metrics interface {
	Hit()
	Miss()
	Expire()
	Invalidate(n int)
}

// NoopMetrics discards every event.
type NoopMetrics struct{}

func (NoopMetrics) Hit()           {}
func (NoopMetrics) Miss()          {}
func (NoopMetrics) Expire()        {}
func (NoopMetrics) Invalidate(int) {}
