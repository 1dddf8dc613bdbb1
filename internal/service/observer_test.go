package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/BuzzLyutic/task-list/internal/model"
	"github.com/BuzzLyutic/task-list/internal/storage"
)

func TestSubscribe_RegistrationOrder(t *testing.T) {
	s := newTestService(t, nil)

	var calls []string
	s.Subscribe(func([]model.Task) { calls = append(calls, "first") })
	s.Subscribe(func([]model.Task) { calls = append(calls, "second") })
	s.Subscribe(func([]model.Task) { calls = append(calls, "third") })

	mustAdd(t, s, "a")

	assert.Equal(t, []string{"first", "second", "third"}, calls)
}

func TestSubscribe_ReceivesSnapshotAfterMutation(t *testing.T) {
	s := newTestService(t, nil)

	var last []model.Task
	s.Subscribe(func(tasks []model.Task) { last = tasks })

	a := mustAdd(t, s, "a")
	assert.Equal(t, s.GetAllTasks(), last)

	s.ToggleTask(a.ID)
	require.Len(t, last, 1)
	assert.True(t, last[0].Completed)
}

func TestSubscribe_PanicIsIsolated(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	s := NewTaskService(storage.NewMemoryStorage(), zap.New(core))

	before, after := 0, 0
	s.Subscribe(func([]model.Task) { before++ })
	s.Subscribe(func([]model.Task) { panic("render failed") })
	s.Subscribe(func([]model.Task) { after++ })

	task, err := s.AddTask(model.TaskInput{Text: "a"})

	require.NoError(t, err)
	assert.Equal(t, 1, before)
	assert.Equal(t, 1, after, "observers after the failing one still run")
	assert.Equal(t, []model.Task{task}, s.GetAllTasks())
	assert.Equal(t, 1, logs.FilterMessage("observer panicked").Len())
}

func TestSubscribe_ObserversGetIndependentCopies(t *testing.T) {
	s := newTestService(t, nil)

	s.Subscribe(func(tasks []model.Task) {
		tasks[0].Text = "mutated by observer"
	})
	var seen string
	s.Subscribe(func(tasks []model.Task) { seen = tasks[0].Text })

	mustAdd(t, s, "original")

	assert.Equal(t, "original", seen)
	assert.Equal(t, "original", s.GetAllTasks()[0].Text)
}

func TestSubscription_Unsubscribe(t *testing.T) {
	s := newTestService(t, nil)

	calls := 0
	sub := s.Subscribe(func([]model.Task) { calls++ })

	mustAdd(t, s, "a")
	sub.Unsubscribe()
	sub.Unsubscribe()
	mustAdd(t, s, "b")

	assert.Equal(t, 1, calls)
}

func TestSubscription_UnsubscribeFromCallback(t *testing.T) {
	s := newTestService(t, nil)

	once := 0
	var sub *Subscription
	sub = s.Subscribe(func([]model.Task) {
		once++
		sub.Unsubscribe()
	})
	other := 0
	s.Subscribe(func([]model.Task) { other++ })

	mustAdd(t, s, "a")
	mustAdd(t, s, "b")

	assert.Equal(t, 1, once)
	assert.Equal(t, 2, other)
}
