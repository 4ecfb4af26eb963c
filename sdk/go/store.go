package giglinesdk

import (
	"context"
	"sort"
	"sync"
)

// TaskStore caches the tasks of one contract on the client side. The cache
// only changes after the server accepted a mutation, so a failed call leaves
// it untouched.
type TaskStore struct {
	client     *Client
	contractID int64

	mu     sync.RWMutex
	tasks  map[int64]Task
	gate   *ContractGate
	loaded bool
}

func NewTaskStore(c *Client, contractID int64) *TaskStore {
	return &TaskStore{client: c, contractID: contractID, tasks: make(map[int64]Task)}
}

func (s *TaskStore) ContractID() int64 {
	return s.contractID
}

// Refresh reloads all tasks of the contract.
func (s *TaskStore) Refresh(ctx context.Context) error {
	tasks, err := s.client.TaskFileData(ctx, s.contractID, "", "")
	if err != nil {
		return err
	}
	next := make(map[int64]Task, len(tasks))
	for _, t := range tasks {
		next[t.ID] = t
	}
	s.mu.Lock()
	s.tasks = next
	s.gate = nil
	s.loaded = true
	s.mu.Unlock()
	return nil
}

func (s *TaskStore) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// List returns cached tasks ordered by ID.
func (s *TaskStore) List() []Task {
	s.mu.RLock()
	out := make([]Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *TaskStore) Get(taskID int64) (Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[taskID]
	return t, ok
}

// Gate fetches the contract gate. The gate depends on the clock and on
// contract-level calls made outside the store, so it is never served from
// cache.
func (s *TaskStore) Gate(ctx context.Context) (ContractGate, error) {
	g, err := s.client.CheckStatus(ctx, s.contractID)
	if err != nil {
		return ContractGate{}, err
	}
	s.mu.Lock()
	s.gate = &g
	s.mu.Unlock()
	return g, nil
}

// CachedGate returns the gate from the last Gate call, if any. It may be
// stale, and task mutations through the store clear it.
func (s *TaskStore) CachedGate() (ContractGate, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.gate == nil {
		return ContractGate{}, false
	}
	return *s.gate, true
}

func (s *TaskStore) put(t Task) {
	s.mu.Lock()
	s.tasks[t.ID] = t
	s.gate = nil
	s.mu.Unlock()
}

func (s *TaskStore) Create(ctx context.Context, in TaskInput) (Task, error) {
	t, err := s.client.CreateTask(ctx, s.contractID, in)
	if err != nil {
		return Task{}, err
	}
	s.put(t)
	return t, nil
}

func (s *TaskStore) Edit(ctx context.Context, taskID int64, in TaskInput) (Task, error) {
	t, err := s.client.UpdateTask(ctx, taskID, in)
	if err != nil {
		return Task{}, err
	}
	s.put(t)
	return t, nil
}

func (s *TaskStore) Submit(ctx context.Context, taskID int64, note string, files []File) (Task, error) {
	t, err := s.client.SubmitTask(ctx, taskID, note, files)
	if err != nil {
		return Task{}, err
	}
	s.put(t)
	return t, nil
}

func (s *TaskStore) UpdateSubmission(ctx context.Context, taskID int64, note string, keepFileIDs []string, files []File) (Task, error) {
	t, err := s.client.UpdateSubmission(ctx, taskID, note, keepFileIDs, files)
	if err != nil {
		return Task{}, err
	}
	s.put(t)
	return t, nil
}

// Approve approves the task and returns the settlement tracking its payment.
func (s *TaskStore) Approve(ctx context.Context, taskID int64) (Task, Settlement, error) {
	t, st, err := s.client.ApproveTask(ctx, taskID)
	if err != nil {
		return Task{}, Settlement{}, err
	}
	s.put(t)
	return t, st, nil
}

func (s *TaskStore) Reject(ctx context.Context, taskID int64, reason string) (Task, error) {
	t, err := s.client.RejectTask(ctx, taskID, reason)
	if err != nil {
		return Task{}, err
	}
	s.put(t)
	return t, nil
}

// Delete removes a pending task and returns the refunded amount.
func (s *TaskStore) Delete(ctx context.Context, taskID int64) (int64, error) {
	refunded, err := s.client.DeleteTask(ctx, taskID)
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	delete(s.tasks, taskID)
	s.gate = nil
	s.mu.Unlock()
	return refunded, nil
}
