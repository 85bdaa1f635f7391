package types

import (
	"strings"
	"time"
)

// CallableRef names the code a job runs. An empty Component means a free function.
type CallableRef struct {
	Component string `json:"component,omitempty"`
	Callback  string `json:"callback"`
}

// Func references a free function.
func Func(callback string) CallableRef {
	return CallableRef{Callback: callback}
}

// Method references a callback registered under a component.
func Method(component, callback string) CallableRef {
	return CallableRef{Component: component, Callback: callback}
}

// ParseCallable accepts "callback" or "Component::callback".
func ParseCallable(s string) CallableRef {
	if component, callback, ok := strings.Cut(s, "::"); ok {
		return Method(component, callback)
	}
	return Func(s)
}

func (c CallableRef) String() string {
	if c.Component == "" {
		return c.Callback
	}
	return c.Component + "::" + c.Callback
}

// ComponentPtr returns nil for free functions, matching the nullable column.
func (c CallableRef) ComponentPtr() *string {
	if c.Component == "" {
		return nil
	}
	component := c.Component
	return &component
}

// EnqueueRequest describes a job insert. It is also the message body published to the broker
// when the queue writer is enabled.
type EnqueueRequest struct {
	Queue       string      `json:"queue"`
	Callable    CallableRef `json:"callable"`
	Args        any         `json:"args,omitempty"`
	ScheduledAt time.Time   `json:"scheduled_at"`
	// Priority is nil for the default. Zero is a valid priority and runs before 1.
	Priority *int `json:"priority,omitempty"`
}

// PriorityOrDefault returns the priority to store.
func (r EnqueueRequest) PriorityOrDefault() int {
	if r.Priority == nil {
		return DefaultPriority
	}
	return *r.Priority
}

// Priority returns p as an explicit request priority.
func Priority(p int) *int {
	return &p
}

// JobDefinition bundles per-callable defaults so producers only pass arguments.
type JobDefinition struct {
	Queue    string
	Callable CallableRef
	Priority *int
}
