package storage

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/codebuildervaibhav/transcript-summarizer/internal/types"
)

type artifactKey struct {
	kind ArtifactKind
	id   string
}

// MemoryStore is an in-process TaskStore. Values are copied on the way in
// and out so callers never share state with the store.
type MemoryStore struct {
	mu        sync.RWMutex
	tasks     map[string]types.Task
	artifacts map[artifactKey][]byte
	chunks    map[string]map[int]types.SummaryChunk
	now       func() time.Time
}

// NewMemoryStore creates an empty in-process store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tasks:     make(map[string]types.Task),
		artifacts: make(map[artifactKey][]byte),
		chunks:    make(map[string]map[int]types.SummaryChunk),
		now:       time.Now,
	}
}

func (s *MemoryStore) SaveTask(_ context.Context, task *types.Task) error {
	if _, err := types.ParseStatus(string(task.Status)); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[task.ID] = *task
	return nil
}

func (s *MemoryStore) GetTask(_ context.Context, id string) (*types.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	task, ok := s.tasks[id]
	if !ok {
		return nil, notFound(id)
	}
	return &task, nil
}

func (s *MemoryStore) ListTasks(_ context.Context, limit int) ([]*types.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*types.Task, 0, len(s.tasks))
	for _, task := range s.tasks {
		task := task
		out = append(out, &task)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) UpdateStatus(_ context.Context, id string, to types.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[id]
	if !ok {
		return notFound(id)
	}
	if _, err := types.ParseStatus(string(task.Status)); err != nil {
		return err
	}
	if err := types.Transition(id, task.Status, to); err != nil {
		return err
	}
	task.Status = to
	task.UpdatedAt = nextTimestamp(s.now().UTC(), task.UpdatedAt)
	s.tasks[id] = task
	return nil
}

func (s *MemoryStore) SaveArtifact(_ context.Context, kind ArtifactKind, id string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return storeErr("encode "+string(kind), err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[id]; !ok {
		return notFound(id)
	}
	s.artifacts[artifactKey{kind: kind, id: id}] = data
	return nil
}

func (s *MemoryStore) GetArtifact(_ context.Context, kind ArtifactKind, id string, dst any) error {
	s.mu.RLock()
	_, known := s.tasks[id]
	data, ok := s.artifacts[artifactKey{kind: kind, id: id}]
	s.mu.RUnlock()

	if !known {
		return notFound(id)
	}
	if !ok {
		return missingArtifact(kind, id)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return storeErr("decode "+string(kind), err)
	}
	return nil
}

func (s *MemoryStore) SaveChunk(_ context.Context, chunk types.SummaryChunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[chunk.TaskID]; !ok {
		return notFound(chunk.TaskID)
	}
	byIndex, ok := s.chunks[chunk.TaskID]
	if !ok {
		byIndex = make(map[int]types.SummaryChunk)
		s.chunks[chunk.TaskID] = byIndex
	}
	byIndex[chunk.Index] = chunk
	return nil
}

func (s *MemoryStore) ClearChunks(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[id]; !ok {
		return notFound(id)
	}
	delete(s.chunks, id)
	return nil
}

func (s *MemoryStore) ListChunks(_ context.Context, id string) ([]types.SummaryChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.tasks[id]; !ok {
		return nil, notFound(id)
	}
	out := make([]types.SummaryChunk, 0, len(s.chunks[id]))
	for _, c := range s.chunks[id] {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out, nil
}

func (s *MemoryStore) Close() error {
	return nil
}
