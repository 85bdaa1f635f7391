package state

import (
	"fmt"
	"sync/atomic"
)

// WorkerState is the phase of a worker's poll loop.
type WorkerState int32

const (
	WorkerIdle WorkerState = iota
	WorkerPolling
	WorkerClaiming
	WorkerExecuting
	WorkerRecording
	WorkerStopped
)

func (s WorkerState) String() string {
	switch s {
	case WorkerIdle:
		return "idle"
	case WorkerPolling:
		return "polling"
	case WorkerClaiming:
		return "claiming"
	case WorkerExecuting:
		return "executing"
	case WorkerRecording:
		return "recording"
	case WorkerStopped:
		return "stopped"
	}
	return "unknown"
}

var workerTransitions = map[WorkerState][]WorkerState{
	WorkerIdle:      {WorkerPolling, WorkerStopped},
	WorkerPolling:   {WorkerClaiming, WorkerStopped},
	WorkerClaiming:  {WorkerExecuting, WorkerIdle, WorkerStopped},
	WorkerExecuting: {WorkerRecording},
	WorkerRecording: {WorkerPolling, WorkerIdle, WorkerStopped},
	// a stopped worker may be started again
	WorkerStopped: {WorkerIdle},
}

func IsValidWorkerTransition(from, to WorkerState) bool {
	for _, next := range workerTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Machine holds a worker's current state and rejects illegal moves.
type Machine struct {
	current atomic.Int32
}

func NewMachine() *Machine {
	m := &Machine{}
	m.current.Store(int32(WorkerStopped))
	return m
}

func (m *Machine) Current() WorkerState {
	return WorkerState(m.current.Load())
}

// To moves the machine to next. The state is left unchanged on an illegal move.
func (m *Machine) To(next WorkerState) error {
	from := m.Current()
	if !IsValidWorkerTransition(from, next) {
		return fmt.Errorf("invalid worker transition %s -> %s", from, next)
	}
	m.current.Store(int32(next))
	return nil
}
