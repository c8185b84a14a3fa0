package misc

import (
	"fmt"
	"reflect"
	"runtime"
	"slices"
	"sync"
)

// FullName returns the fully-qualified name of a function: its package import
// path followed by "." and the function name, as reported by the runtime.
// It returns "" for nil and for values that are not functions.
func FullName(fn any) string {
	pc, ok := funcPC(fn)
	if !ok {
		return ""
	}
	f := runtime.FuncForPC(pc)
	if f == nil {
		return ""
	}
	return f.Name()
}

// SameFunc reports whether a and b are the same function.
func SameFunc(a, b any) bool {
	pa, oka := funcPC(a)
	pb, okb := funcPC(b)
	return oka && okb && pa == pb
}

func funcPC(fn any) (uintptr, bool) {
	if fn == nil {
		return 0, false
	}
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func || v.IsNil() {
		return 0, false
	}
	return v.Pointer(), true
}

// FuncRegistry maps fully-qualified names back to functions.
// Go cannot resolve a symbol from its name at run time, so a function can be
// looked up only after it has been registered.
type FuncRegistry struct {
	mu    sync.RWMutex
	funcs map[string]any
}

// NewFuncRegistry constructs an empty registry.
func NewFuncRegistry() *FuncRegistry {
	return &FuncRegistry{funcs: make(map[string]any)}
}

// Register stores fn under its FullName and returns that name.
// Registering the same function twice is a no-op.
func (r *FuncRegistry) Register(fn any) (string, error) {
	name := FullName(fn)
	if name == "" {
		return "", fmt.Errorf("%w: %T is not a function", ErrUnknownFunction, fn)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.funcs == nil {
		r.funcs = make(map[string]any)
	}
	r.funcs[name] = fn
	return name, nil
}

// Lookup returns the function registered under name.
func (r *FuncRegistry) Lookup(name string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.funcs[name]
	return fn, ok
}

// Names returns the registered names in sorted order.
func (r *FuncRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Load resolves v to a function. A function is returned unchanged; a string
// is looked up by name.
func (r *FuncRegistry) Load(v any) (any, error) {
	if _, ok := funcPC(v); ok {
		return v, nil
	}
	name, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("%w: cannot resolve %T", ErrUnknownFunction, v)
	}
	fn, ok := r.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not registered", ErrUnknownFunction, name)
	}
	return fn, nil
}

var defaultRegistry = NewFuncRegistry()

// RegisterFunc registers fn with the package registry used by LoadFromFullName.
func RegisterFunc(fn any) (string, error) {
	return defaultRegistry.Register(fn)
}

// LoadFromFullName resolves v through the package registry.
func LoadFromFullName(v any) (any, error) {
	return defaultRegistry.Load(v)
}
