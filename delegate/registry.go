package delegate

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/BaSui01/plangraph/types"
)

var (
	// ErrDelegateNotFound is returned by Resolve for unknown names.
	ErrDelegateNotFound = types.NewError(types.ErrDelegateNotFound, "delegate not found")
	// ErrDuplicateDelegate is returned by Register when the name is taken.
	ErrDuplicateDelegate = types.NewError(types.ErrDuplicateName, "delegate already registered")
)

// Registry maps delegate names to implementations. A registry created with
// Scope falls back to its parent for names it does not know, which lets a
// plan define wrapped delegates without touching the shared registry.
type Registry struct {
	mu        sync.RWMutex
	delegates map[string]Delegate
	parent    *Registry
	logger    *zap.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		delegates: make(map[string]Delegate),
		logger:    logger.With(zap.String("component", "delegate_registry")),
	}
}

// Scope returns a child registry that resolves through r.
func (r *Registry) Scope() *Registry {
	return &Registry{
		delegates: make(map[string]Delegate),
		parent:    r,
		logger:    r.logger,
	}
}

// Register adds a delegate. Names must be unique within this registry; a
// scoped registry may shadow a parent name.
func (r *Registry) Register(name string, d Delegate) error {
	if name == "" || d == nil {
		return types.NewError(types.ErrInvalidNode, "delegate name and implementation are required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.delegates[name]; exists {
		return types.Errorf(types.ErrDuplicateName, "delegate %q already registered", name)
	}
	r.delegates[name] = d
	r.logger.Debug("delegate registered", zap.String("delegate", name))
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(name string, d Delegate) {
	if err := r.Register(name, d); err != nil {
		panic(err)
	}
}

// RegisterFunc registers a plain function.
func (r *Registry) RegisterFunc(name string, fn func(ctx context.Context, req Request) (any, error)) error {
	return r.Register(name, Func(fn))
}

// Resolve returns the delegate registered under name.
func (r *Registry) Resolve(name string) (Delegate, error) {
	for reg := r; reg != nil; reg = reg.parent {
		reg.mu.RLock()
		d, ok := reg.delegates[name]
		reg.mu.RUnlock()
		if ok {
			return d, nil
		}
	}
	return nil, types.Errorf(types.ErrDelegateNotFound, "delegate %q not found", name)
}

// Names returns every resolvable name, sorted.
func (r *Registry) Names() []string {
	seen := make(map[string]struct{})
	for reg := r; reg != nil; reg = reg.parent {
		reg.mu.RLock()
		for name := range reg.delegates {
			seen[name] = struct{}{}
		}
		reg.mu.RUnlock()
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
