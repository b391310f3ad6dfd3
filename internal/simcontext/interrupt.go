package simcontext

import "sync"

// Interrupter is the one-shot cancellation signal of §4.4 "Interrupt
// semantics": the orchestrator holds one per in-flight rehydration task;
// sending on it (Fire) tells the task to abandon its result. A new
// replication/rehydration replaces the interrupter outright — the old
// one's firing, if it ever happens, is simply ignored by the new task.
type Interrupter struct {
	once sync.Once
	ch   chan struct{}
}

// NewInterrupter returns a fresh, unfired interrupter.
func NewInterrupter() *Interrupter {
	return &Interrupter{ch: make(chan struct{})}
}

// Fire signals the interrupter. Safe to call more than once or
// concurrently; only the first call has effect.
func (i *Interrupter) Fire() {
	i.once.Do(func() { close(i.ch) })
}

// C returns the channel a rehydration task selects on to observe Fire.
func (i *Interrupter) C() <-chan struct{} {
	return i.ch
}
