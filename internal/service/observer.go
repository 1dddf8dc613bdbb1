package service

import (
	"sync"

	"go.uber.org/zap"

	"github.com/BuzzLyutic/task-list/internal/model"
)

// Observer receives its own copy of the task list after every successful
// mutation or load. It runs synchronously while the store is locked, so it
// must not call back into the TaskService. Unsubscribing is fine.
type Observer func(tasks []model.Task)

type Subscription struct {
	id  uint64
	reg *observers
}

// Unsubscribe stops further notifications. Calling it twice is harmless.
func (sub *Subscription) Unsubscribe() {
	sub.reg.remove(sub.id)
}

type observerEntry struct {
	id uint64
	fn Observer
}

type observers struct {
	mu      sync.Mutex
	entries []observerEntry
	seq     uint64
}

func (o *observers) add(fn Observer) uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.seq++
	o.entries = append(o.entries, observerEntry{id: o.seq, fn: fn})
	return o.seq
}

func (o *observers) remove(id uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()

	for i, e := range o.entries {
		if e.id == id {
			o.entries = append(o.entries[:i:i], o.entries[i+1:]...)
			return
		}
	}
}

func (o *observers) list() []observerEntry {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make([]observerEntry, len(o.entries))
	copy(out, o.entries)
	return out
}

// Subscribe registers fn. Observers are called in registration order.
func (s *TaskService) Subscribe(fn Observer) *Subscription {
	return &Subscription{id: s.observers.add(fn), reg: &s.observers}
}

// notify calls every observer with a fresh snapshot. A panicking observer is
// logged and skipped, the rest still run. Caller holds s.mu.
func (s *TaskService) notify() {
	for _, e := range s.observers.list() {
		s.call(e, s.snapshot())
	}
}

func (s *TaskService) call(e observerEntry, tasks []model.Task) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("observer panicked",
				zap.Uint64("observer", e.id),
				zap.Any("panic", r),
			)
		}
	}()
	e.fn(tasks)
}
