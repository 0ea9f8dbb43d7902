package goGuard

import "sync"

// MemoryCookieJar is a CookieJar for callers without an HTTP response,
// such as tests and command line tools. It is safe for concurrent use.
type MemoryCookieJar struct {
	mu      sync.Mutex
	values  map[string]Cookie
	cleared map[string]bool
}

// NewMemoryCookieJar returns a jar preloaded with request cookie values.
func NewMemoryCookieJar(request map[string]string) *MemoryCookieJar {
	j := &MemoryCookieJar{
		values:  make(map[string]Cookie, len(request)),
		cleared: map[string]bool{},
	}
	for k, v := range request {
		j.values[k] = Cookie{Name: k, Value: v}
	}
	return j
}

// Get implements CookieJar.
func (j *MemoryCookieJar) Get(name string) (string, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	c, ok := j.values[name]
	return c.Value, ok
}

// Set implements CookieJar.
func (j *MemoryCookieJar) Set(c Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.values[c.Name] = c
	delete(j.cleared, c.Name)
}

// Clear implements CookieJar.
func (j *MemoryCookieJar) Clear(name string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	delete(j.values, name)
	j.cleared[name] = true
}

// Cookie returns the stored cookie including its expiry.
func (j *MemoryCookieJar) Cookie(name string) (Cookie, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	c, ok := j.values[name]
	return c, ok
}

// Cleared reports whether name was cleared and not set again since.
func (j *MemoryCookieJar) Cleared(name string) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.cleared[name]
}
