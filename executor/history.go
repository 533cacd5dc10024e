package executor

import (
	"sync"
	"time"
)

// RunStatus represents the terminal status of a run
type RunStatus string

const (
	// RunStatusRunning indicates the run is in progress
	RunStatusRunning RunStatus = "running"
	// RunStatusOK indicates the run completed successfully
	RunStatusOK RunStatus = "ok"
	// RunStatusFailed indicates the run failed without compensation
	RunStatusFailed RunStatus = "failed"
	// RunStatusCompensated indicates the run failed and compensation completed
	RunStatusCompensated RunStatus = "compensated"
)

// AttemptRecord records a single execution attempt
type AttemptRecord struct {
	Attempt   int           `json:"attempt"`
	StartTime time.Time     `json:"start_time"`
	Duration  time.Duration `json:"duration"`
	Status    string        `json:"status"`
	Error     string        `json:"error,omitempty"`
}

// CompensationRecord records the compensation outcome of a failed run
type CompensationRecord struct {
	Attempts int           `json:"attempts"`
	Result   string        `json:"result"` // completed | failed | crashed
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// RunRecord records the complete life of one Run invocation
type RunRecord struct {
	RunID        string               `json:"run_id"`
	Action       string               `json:"action"`
	StartTime    time.Time            `json:"start_time"`
	EndTime      time.Time            `json:"end_time"`
	Duration     time.Duration        `json:"duration"`
	Status       RunStatus            `json:"status"`
	Attempts     []*AttemptRecord     `json:"attempts"`
	Compensation *CompensationRecord  `json:"compensation,omitempty"`
	Error        string               `json:"error,omitempty"`
	mu           sync.RWMutex
}

// NewRunRecord creates a run record in the running state
func NewRunRecord(runID, actionName string) *RunRecord {
	return &RunRecord{
		RunID:     runID,
		Action:    actionName,
		StartTime: time.Now(),
		Status:    RunStatusRunning,
		Attempts:  make([]*AttemptRecord, 0, 1),
	}
}

// RecordAttempt appends one attempt record
func (r *RunRecord) RecordAttempt(attempt int, status, errMsg string, start time.Time, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.Attempts = append(r.Attempts, &AttemptRecord{
		Attempt:   attempt,
		StartTime: start,
		Duration:  d,
		Status:    status,
		Error:     errMsg,
	})
}

// RecordCompensation records the compensation outcome
func (r *RunRecord) RecordCompensation(result, errMsg string, attempts int, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.Compensation = &CompensationRecord{
		Attempts: attempts,
		Result:   result,
		Error:    errMsg,
		Duration: d,
	}
}

// Complete marks the run finished. A nil error means success; compensated
// reports whether a compensation handler ran to completion.
func (r *RunRecord) Complete(errMsg string, compensated bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.EndTime = time.Now()
	r.Duration = r.EndTime.Sub(r.StartTime)

	switch {
	case errMsg == "":
		r.Status = RunStatusOK
	case compensated:
		r.Status = RunStatusCompensated
		r.Error = errMsg
	default:
		r.Status = RunStatusFailed
		r.Error = errMsg
	}
}

// GetAttempts returns a copy of the attempt records
func (r *RunRecord) GetAttempts() []*AttemptRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	attempts := make([]*AttemptRecord, len(r.Attempts))
	copy(attempts, r.Attempts)
	return attempts
}

// HistoryStore stores and queries run records in memory.
// A nil *HistoryStore is a valid no-op store.
type HistoryStore struct {
	records map[string]*RunRecord
	mu      sync.RWMutex
}

// NewHistoryStore creates an empty history store
func NewHistoryStore() *HistoryStore {
	return &HistoryStore{
		records: make(map[string]*RunRecord),
	}
}

// Save saves a run record
func (s *HistoryStore) Save(rec *RunRecord) {
	if s == nil || rec == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.RunID] = rec
}

// Get retrieves a run record by run ID
func (s *HistoryStore) Get(runID string) (*RunRecord, bool) {
	if s == nil {
		return nil, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[runID]
	return r, ok
}

// ListByAction returns all runs of a named action
func (s *HistoryStore) ListByAction(actionName string) []*RunRecord {
	if s == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*RunRecord
	for _, r := range s.records {
		if r.Action == actionName {
			result = append(result, r)
		}
	}
	return result
}

// ListByStatus returns runs with a specific terminal status
func (s *HistoryStore) ListByStatus(status RunStatus) []*RunRecord {
	if s == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*RunRecord
	for _, r := range s.records {
		if r.Status == status {
			result = append(result, r)
		}
	}
	return result
}

// ListByTimeRange returns runs started within [start, end]
func (s *HistoryStore) ListByTimeRange(start, end time.Time) []*RunRecord {
	if s == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*RunRecord
	for _, r := range s.records {
		if !r.StartTime.Before(start) && !r.StartTime.After(end) {
			result = append(result, r)
		}
	}
	return result
}
