package inbox

import (
	"sync"
	"time"
)

// Flash holds a transient notice for the user.
type Flash struct {
	mu      sync.RWMutex
	message string
	expires time.Time

	// Now defaults to time.Now.
	Now func() time.Time
}

func (f *Flash) now() time.Time {
	if f.Now != nil {
		return f.Now()
	}
	return time.Now()
}

// Set stores a flash message that expires after the given duration.
func (f *Flash) Set(msg string, d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.message = msg
	f.expires = f.now().Add(d)
}

// Get returns the current flash message, or empty if expired.
func (f *Flash) Get() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if !f.now().Before(f.expires) {
		return ""
	}
	return f.message
}
