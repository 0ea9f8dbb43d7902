package permission

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode"
)

var (
	// ErrUnknown is returned for permission names not in the registry.
	ErrUnknown = errors.New("unknown permission")
	// ErrFrozen is returned by Register after Freeze.
	ErrFrozen = errors.New("permission registry frozen")
)

// Registry records the permission names an application declares. Names are
// registered at startup, then the registry is frozen and only read.
type Registry struct {
	mu     sync.RWMutex
	names  map[string]struct{}
	frozen bool
}

// NewRegistry returns a registry that already knows AdminPermission.
func NewRegistry() *Registry {
	return &Registry{names: map[string]struct{}{AdminPermission: {}}}
}

// Register declares permission under storage and returns the full name.
func (r *Registry) Register(storage, permission string) (string, error) {
	storage = Uncamelize(strings.TrimSpace(storage))
	permission = strings.TrimSpace(permission)
	if storage == "" || permission == "" {
		return "", errors.New("permission storage and name cannot be empty")
	}
	if strings.Contains(permission, ".") {
		return "", fmt.Errorf("permission %q must not contain '.'", permission)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		return "", ErrFrozen
	}
	name := storage + "." + permission
	if _, exists := r.names[name]; exists {
		return "", fmt.Errorf("permission %q already registered", name)
	}
	r.names[name] = struct{}{}
	return name, nil
}

// Known reports whether name was registered.
func (r *Registry) Known(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.names[name]
	return ok
}

// Check returns ErrUnknown wrapped with the first unregistered name.
func (r *Registry) Check(names ...string) error {
	for _, n := range names {
		if !r.Known(n) {
			return fmt.Errorf("%w: %q", ErrUnknown, n)
		}
	}
	return nil
}

// Freeze prevents further registrations.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// Count returns the number of registered names.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.names)
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s := make(Set, len(r.names))
	for n := range r.names {
		s.Add(n)
	}
	return s.Names()
}

// Split separates a full name into storage and permission.
func Split(name string) (storage, permission string, ok bool) {
	storage, permission, ok = strings.Cut(name, ".")
	if !ok || storage == "" || permission == "" {
		return "", "", false
	}
	return storage, permission, true
}

// Uncamelize turns "MyApp" into "my_app". Runs of capitals stay together,
// so "HTTPServer" becomes "http_server".
func Uncamelize(s string) string {
	runes := []rune(s)
	var b strings.Builder
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 && runes[i-1] != '_' {
				prevLower := unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1])
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if prevLower || (unicode.IsUpper(runes[i-1]) && nextLower) {
					b.WriteByte('_')
				}
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
