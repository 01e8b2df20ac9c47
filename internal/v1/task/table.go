package task

import (
	"errors"
	"sync"
)

var (
	// ErrDuplicateTask is returned when inserting an already-known task id.
	ErrDuplicateTask = errors.New("task id already registered")
)

// Table is the concurrent registry of task records. All reads return copies
// so callers never share mutable state with the table.
type Table struct {
	mu      sync.RWMutex
	records map[string]*Record
}

// NewTable creates an empty task table.
func NewTable() *Table {
	return &Table{
		records: make(map[string]*Record),
	}
}

// InsertInitial registers a new record. Fails if the task id is taken.
func (t *Table) InsertInitial(rec Record) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.records[rec.TaskID]; exists {
		return ErrDuplicateTask
	}
	stored := rec
	t.records[rec.TaskID] = &stored
	return nil
}

// MarkCompleted transitions a record from PROCESSING to COMPLETED.
// Returns false when the record is missing or already terminal.
func (t *Table) MarkCompleted(taskID string, result Result, completedAt int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[taskID]
	if !ok || rec.Status != StatusProcessing {
		return false
	}
	rec.Status = StatusCompleted
	rec.Result = &result
	rec.CompletedAt = &completedAt
	return true
}

// MarkFailed transitions a record from PROCESSING to FAILED.
// Returns false when the record is missing or already terminal.
func (t *Table) MarkFailed(taskID string, errorMessage string, completedAt int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[taskID]
	if !ok || rec.Status != StatusProcessing {
		return false
	}
	rec.Status = StatusFailed
	rec.ErrorMessage = errorMessage
	rec.CompletedAt = &completedAt
	return true
}

// Get returns a copy of the record for the given task id.
func (t *Table) Get(taskID string) (Record, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	rec, ok := t.records[taskID]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

// GetAndMaybeRemove returns the record and, when it is COMPLETED, removes it
// from the table in the same critical section. A completed result is handed
// out exactly once; PROCESSING and FAILED records stay in place for later
// polls.
func (t *Table) GetAndMaybeRemove(taskID string) (Record, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[taskID]
	if !ok {
		return Record{}, false
	}
	copied := *rec
	if rec.Status == StatusCompleted {
		delete(t.records, taskID)
	}
	return copied, true
}

// ListIDs returns a snapshot of all registered task ids.
func (t *Table) ListIDs() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	ids := make([]string, 0, len(t.records))
	for id := range t.records {
		ids = append(ids, id)
	}
	return ids
}

// Len reports the number of registered records.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.records)
}
