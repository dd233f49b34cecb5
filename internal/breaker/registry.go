package breaker

import "sync"

// Registry holds one breaker per provider name.
type Registry struct {
	mu       sync.Mutex
	opts     Options
	breakers map[string]*Breaker
	hook     func(name string, from, to State)
}

func NewRegistry(opts Options) *Registry {
	return &Registry{
		opts:     opts,
		breakers: make(map[string]*Breaker),
	}
}

// SetOnStateChange installs a hook applied to every breaker, existing
// and future.
func (r *Registry) SetOnStateChange(fn func(name string, from, to State)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hook = fn
	for _, b := range r.breakers {
		b.SetOnStateChange(fn)
	}
}

func (r *Registry) Get(name string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.breakers[name]; ok {
		return b
	}
	b := New(name, r.opts)
	if r.hook != nil {
		b.SetOnStateChange(r.hook)
	}
	r.breakers[name] = b
	return b
}

func (r *Registry) Statuses() []Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Status, 0, len(r.breakers))
	for _, b := range r.breakers {
		out = append(out, b.Status())
	}
	return out
}
