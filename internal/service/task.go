package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/task-list/internal/model"
	"github.com/BuzzLyutic/task-list/internal/storage"
)

var (
	ErrValidation = errors.New("validation error")
)

const DefaultTasksKey = "tasks"

type Option func(*TaskService)

// WithKey sets the storage slot the task list is mirrored to.
func WithKey(key string) Option {
	return func(s *TaskService) { s.key = key }
}

// WithTimeout bounds a single storage read or write.
func WithTimeout(d time.Duration) Option {
	return func(s *TaskService) { s.timeout = d }
}

func WithClock(now func() time.Time) Option {
	return func(s *TaskService) { s.now = now }
}

func WithIDGenerator(gen func() string) Option {
	return func(s *TaskService) { s.newID = gen }
}

// TaskService owns the ordered task list. Every successful mutation is
// written to storage and pushed to observers before the call returns.
// Callers only ever see copies of the list.
type TaskService struct {
	storage storage.Storage
	logger  *zap.Logger
	key     string
	timeout time.Duration
	now     func() time.Time
	newID   func() string

	mu    sync.Mutex
	tasks []model.Task
	ids   map[string]struct{} // every id this store has handed out or loaded

	observers observers
}

func NewTaskService(st storage.Storage, logger *zap.Logger, opts ...Option) *TaskService {
	s := &TaskService{
		storage: st,
		logger:  logger,
		key:     DefaultTasksKey,
		timeout: 2 * time.Second,
		now:     time.Now,
		newID:   uuid.NewString,
		tasks:   []model.Task{},
		ids:     make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *TaskService) GetAllTasks() []model.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

// GetFilteredTasks keeps the store order. Unknown filters select everything.
func (s *TaskService) GetFilteredTasks(filter model.Filter) []model.Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	filter = model.ParseFilter(string(filter))
	out := make([]model.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		if filter.Match(t) {
			out = append(out, t.Clone())
		}
	}
	return out
}

func (s *TaskService) GetTask(id string) (model.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return model.Task{}, false
	}
	return s.tasks[i].Clone(), true
}

// AddTask puts the new task at the front of the list.
func (s *TaskService) AddTask(in model.TaskInput) (model.Task, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return model.Task{}, fmt.Errorf("%w: task text is empty", ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t := model.Task{
		ID:        s.uniqueID(),
		Text:      text,
		CreatedAt: s.now(),
		DueDate:   strings.TrimSpace(in.DueDate),
		Priority:  model.ParsePriority(in.Priority),
	}
	s.tasks = slices.Insert(s.tasks, 0, t)

	s.commit()
	return t.Clone(), nil
}

// ToggleTask flips completion. Unknown ids are ignored.
func (s *TaskService) ToggleTask(id string) {
	s.toggle(id)
}

// Toggle is ToggleTask that also returns the task as it stands after the
// flip, read under the same lock. ok is false for unknown ids.
func (s *TaskService) Toggle(id string) (model.Task, bool) {
	return s.toggle(id)
}

func (s *TaskService) toggle(id string) (model.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return model.Task{}, false
	}

	t := &s.tasks[i]
	t.Completed = !t.Completed
	if t.Completed {
		at := s.now()
		t.CompletedAt = &at
	} else {
		t.CompletedAt = nil
	}
	toggled := t.Clone()

	s.commit()
	return toggled, true
}

// DeleteTask reports whether a task was removed.
func (s *TaskService) DeleteTask(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return false
	}
	s.tasks = slices.Delete(s.tasks, i, i+1)

	s.commit()
	return true
}

// ClearCompleted drops every completed task and returns how many went.
func (s *TaskService) ClearCompleted() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := len(s.tasks)
	s.tasks = slices.DeleteFunc(s.tasks, func(t model.Task) bool { return t.Completed })
	removed := before - len(s.tasks)
	if removed > 0 {
		s.commit()
	}
	return removed
}

// ReorderTasks moves the dragged task into the slot the target occupies.
// Both indexes are taken before anything moves; the dragged task is removed
// and then inserted at the target's old index. Dragging down therefore lands
// the task after the target, dragging up lands it before the target.
// Returns false, changing nothing, when either id is unknown or they are equal.
func (s *TaskService) ReorderTasks(draggedID, targetID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	from, to := s.indexOf(draggedID), s.indexOf(targetID)
	if from < 0 || to < 0 || from == to {
		return false
	}

	t := s.tasks[from]
	s.tasks = slices.Delete(s.tasks, from, from+1)
	s.tasks = slices.Insert(s.tasks, to, t)

	s.commit()
	return true
}

func (s *TaskService) GetStats() model.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return model.StatsOf(s.tasks)
}

// SaveTasks writes the current list to storage. Failures are logged only.
func (s *TaskService) SaveTasks() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.save()
}

// LoadTasks replaces the in-memory list with what storage holds. Unreadable
// or corrupt data leaves an empty list. Observers are notified either way.
func (s *TaskService) LoadTasks() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tasks = s.load()
	for _, t := range s.tasks {
		s.ids[t.ID] = struct{}{}
	}
	s.notify()
}

func (s *TaskService) load() []model.Task {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	raw, err := s.storage.Get(ctx, s.key)
	if errors.Is(err, storage.ErrorNotFound) {
		return []model.Task{}
	}
	if err != nil {
		s.logger.Error("failed to read tasks", zap.String("key", s.key), zap.Error(err))
		return []model.Task{}
	}

	var stored []model.Task
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		s.logger.Error("stored tasks are corrupt, starting empty", zap.String("key", s.key), zap.Error(err))
		return []model.Task{}
	}

	tasks := sanitize(stored)
	if dropped := len(stored) - len(tasks); dropped > 0 {
		s.logger.Warn("dropped invalid stored tasks", zap.Int("dropped", dropped))
	}
	return tasks
}

// sanitize drops records that cannot be valid tasks and repairs the
// ones that can be repaired.
func sanitize(stored []model.Task) []model.Task {
	tasks := make([]model.Task, 0, len(stored))
	seen := make(map[string]struct{}, len(stored))

	for _, t := range stored {
		t.Text = strings.TrimSpace(t.Text)
		if t.ID == "" || t.Text == "" {
			continue
		}
		if _, dup := seen[t.ID]; dup {
			continue
		}
		seen[t.ID] = struct{}{}

		t.Priority = model.ParsePriority(string(t.Priority))
		switch {
		case t.Completed && t.CompletedAt == nil:
			at := t.CreatedAt
			t.CompletedAt = &at
		case !t.Completed:
			t.CompletedAt = nil
		}
		tasks = append(tasks, t)
	}
	return tasks
}

func (s *TaskService) save() {
	data, err := json.Marshal(s.tasks)
	if err != nil {
		s.logger.Error("failed to encode tasks", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := s.storage.Set(ctx, s.key, string(data)); err != nil {
		s.logger.Error("failed to save tasks", zap.String("key", s.key), zap.Error(err))
	}
}

// commit persists and broadcasts. Caller holds s.mu.
func (s *TaskService) commit() {
	s.save()
	s.notify()
}

func (s *TaskService) snapshot() []model.Task {
	out := make([]model.Task, len(s.tasks))
	for i, t := range s.tasks {
		out[i] = t.Clone()
	}
	return out
}

func (s *TaskService) indexOf(id string) int {
	return slices.IndexFunc(s.tasks, func(t model.Task) bool { return t.ID == id })
}

func (s *TaskService) uniqueID() string {
	for {
		id := s.newID()
		if _, used := s.ids[id]; !used {
			s.ids[id] = struct{}{}
			return id
		}
	}
}
