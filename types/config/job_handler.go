package config

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/RezaEskandarii/tablequeue/custom_errors"
)

// HandlerFunc runs one job. Its return value is stored as the job result.
type HandlerFunc func(ctx context.Context, args ...any) (any, error)

// JobHandler resolves callable references to registered handlers. Free functions live in
// one namespace and component methods in another, keyed by component name.
type JobHandler struct {
	funcs      map[string]HandlerFunc
	components map[string]map[string]HandlerFunc
	mutex      sync.RWMutex
}

func NewJobHandler() *JobHandler {
	return &JobHandler{
		funcs:      make(map[string]HandlerFunc),
		components: make(map[string]map[string]HandlerFunc),
	}
}

// RegisterFunc adds a free-function handler by name.
func (jh *JobHandler) RegisterFunc(name string, handler HandlerFunc) error {
	if name == "" || handler == nil {
		return fmt.Errorf("handler must have a name and function")
	}
	jh.mutex.Lock()
	defer jh.mutex.Unlock()

	if _, exists := jh.funcs[name]; exists {
		return fmt.Errorf("handler '%s' already registered", name)
	}
	jh.funcs[name] = handler
	return nil
}

// RegisterMethod adds a handler under a component.
func (jh *JobHandler) RegisterMethod(component, name string, handler HandlerFunc) error {
	if component == "" || name == "" || handler == nil {
		return fmt.Errorf("method handler must have a component, a name and a function")
	}
	jh.mutex.Lock()
	defer jh.mutex.Unlock()

	methods, ok := jh.components[component]
	if !ok {
		methods = make(map[string]HandlerFunc)
		jh.components[component] = methods
	}
	if _, exists := methods[name]; exists {
		return fmt.Errorf("handler '%s::%s' already registered", component, name)
	}
	methods[name] = handler
	return nil
}

func (jh *JobHandler) Exists(component *string, name string) bool {
	_, err := jh.lookup(component, name)
	return err == nil
}

func (jh *JobHandler) lookup(component *string, name string) (HandlerFunc, error) {
	jh.mutex.RLock()
	defer jh.mutex.RUnlock()

	if component == nil {
		handler, ok := jh.funcs[name]
		if !ok {
			return nil, &custom_errors.UnknownCallbackError{Callback: name}
		}
		return handler, nil
	}
	methods, ok := jh.components[*component]
	if !ok {
		return nil, &custom_errors.UnknownComponentError{Component: *component}
	}
	handler, ok := methods[name]
	if !ok {
		return nil, &custom_errors.UnknownCallbackError{Component: *component, Callback: name}
	}
	return handler, nil
}

// Invoke runs the referenced handler. Every failure, including a panic, is returned as one of
// the job failure types in custom_errors.
func (jh *JobHandler) Invoke(ctx context.Context, component *string, callback string, args ...any) (result any, err error) {
	handler, err := jh.lookup(component, callback)
	if err != nil {
		return nil, err
	}

	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = &custom_errors.ExecutionFailureError{Message: fmt.Sprintf("panic: %v", r)}
		}
	}()

	result, err = handler(ctx, args...)
	if err != nil {
		if custom_errors.IsJobFailure(err) {
			return nil, err
		}
		return nil, &custom_errors.ExecutionFailureError{Message: err.Error(), Err: err}
	}
	return result, nil
}

// List returns every registered reference, sorted.
func (jh *JobHandler) List() []string {
	jh.mutex.RLock()
	defer jh.mutex.RUnlock()

	names := make([]string, 0, len(jh.funcs))
	for name := range jh.funcs {
		names = append(names, name)
	}
	for component, methods := range jh.components {
		for name := range methods {
			names = append(names, component+"::"+name)
		}
	}
	sort.Strings(names)
	return names
}
