package repository

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/okian/ridermerge/internal/domain/model"
	"github.com/okian/ridermerge/pkg/metrics"
)

// MemoryStore is an in-process Store. Transactions hold the write lock for
// their whole duration and keep an undo log, so readers see either the state
// before a transaction or after its commit.
type MemoryStore struct {
	mu           sync.RWMutex
	riders       map[int64]model.Rider
	results      map[int64]model.Result
	mergeLog     []model.MergeLogEntry
	nextRiderID  int64
	nextResultID int64
	closed       bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		riders:  make(map[int64]model.Rider),
		results: make(map[int64]model.Result),
	}
}

// InsertRider stores r and returns its id. A zero id is assigned automatically.
func (s *MemoryStore) InsertRider(ctx context.Context, r model.Rider) (int64, error) {
	start := time.Now()
	defer func() { metrics.RecordRepositoryUpdateLatency(float64(time.Since(start).Milliseconds())) }()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	if r.ID == 0 {
		s.nextRiderID++
		r.ID = s.nextRiderID
	} else if _, exists := s.riders[r.ID]; exists {
		return 0, fmt.Errorf("insert rider %d: duplicate id", r.ID)
	}
	if r.ID > s.nextRiderID {
		s.nextRiderID = r.ID
	}
	r.ResultCount = 0
	s.riders[r.ID] = r
	return r.ID, nil
}

// InsertResult stores res, which must reference a live rider.
func (s *MemoryStore) InsertResult(ctx context.Context, res model.Result) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	if _, ok := s.riders[res.RiderID]; !ok {
		return 0, fmt.Errorf("insert result for rider %d: %w", res.RiderID, ErrNotFound)
	}
	s.nextResultID++
	res.ID = s.nextResultID
	s.results[res.ID] = res
	return res.ID, nil
}

// GetRider returns a rider with its result count.
func (s *MemoryStore) GetRider(ctx context.Context, id int64) (model.Rider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getLocked(id)
}

func (s *MemoryStore) getLocked(id int64) (model.Rider, error) {
	r, ok := s.riders[id]
	if !ok {
		return model.Rider{}, fmt.Errorf("rider %d: %w", id, ErrNotFound)
	}
	r.ResultCount = s.countResultsLocked(id)
	return r, nil
}

func (s *MemoryStore) countResultsLocked(riderID int64) int {
	n := 0
	for _, res := range s.results {
		if res.RiderID == riderID {
			n++
		}
	}
	return n
}

// ListRidersByStrongID returns riders that carry a national id, ordered by id.
func (s *MemoryStore) ListRidersByStrongID(ctx context.Context) ([]model.Rider, error) {
	riders, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(riders, func(r model.Rider) bool { return r.NationalID == "" }), nil
}

// ListRidersByName returns every rider ordered by last name, first name, id.
func (s *MemoryStore) ListRidersByName(ctx context.Context) ([]model.Rider, error) {
	riders, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(riders, func(i, j int) bool {
		if riders[i].LastName != riders[j].LastName {
			return riders[i].LastName < riders[j].LastName
		}
		return riders[i].FirstName < riders[j].FirstName
	})
	return riders, nil
}

// ListAllRidersForPhoneticScan returns every rider ordered by id.
func (s *MemoryStore) ListAllRidersForPhoneticScan(ctx context.Context) ([]model.Rider, error) {
	return s.snapshot(ctx)
}

// snapshot copies every rider with its result count, ordered by id.
func (s *MemoryStore) snapshot(ctx context.Context) ([]model.Rider, error) {
	start := time.Now()
	defer func() { metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Milliseconds())) }()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	counts := make(map[int64]int, len(s.riders))
	for _, res := range s.results {
		counts[res.RiderID]++
	}
	riders := make([]model.Rider, 0, len(s.riders))
	for _, r := range s.riders {
		r.ResultCount = counts[r.ID]
		riders = append(riders, r)
	}
	sort.Slice(riders, func(i, j int) bool { return riders[i].ID < riders[j].ID })
	return riders, nil
}

// ResultsByRider returns the results owned by a rider ordered by id.
func (s *MemoryStore) ResultsByRider(ctx context.Context, riderID int64) ([]model.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Result
	for _, res := range s.results {
		if res.RiderID == riderID {
			out = append(out, res)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// MergeLog returns a copy of the audit trail.
func (s *MemoryStore) MergeLog(ctx context.Context) ([]model.MergeLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.mergeLog), nil
}

// Count returns the number of live riders.
func (s *MemoryStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.riders), nil
}

// Close marks the store closed. Further calls fail with ErrClosed.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// WithinTx runs fn under the write lock and undoes every change when fn fails
// or ctx expires before commit.
func (s *MemoryStore) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	start := time.Now()
	defer func() { metrics.RecordRepositoryUpdateLatency(float64(time.Since(start).Milliseconds())) }()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	tx := &memTx{store: s}
	err := fn(tx)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		tx.rollback()
		return err
	}
	return nil
}

// memTx mutates the store in place and records how to revert each change.
type memTx struct {
	store *MemoryStore
	undo  []func()
}

func (t *memTx) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

func (t *memTx) GetRider(ctx context.Context, id int64) (model.Rider, error) {
	if err := ctx.Err(); err != nil {
		return model.Rider{}, err
	}
	return t.store.getLocked(id)
}

func (t *memTx) ReassignOwnership(ctx context.Context, oldID, newID int64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s := t.store
	if _, ok := s.riders[newID]; !ok {
		return 0, fmt.Errorf("reassign to rider %d: %w", newID, ErrNotFound)
	}
	var moved int64
	for id, res := range s.results {
		if res.RiderID != oldID {
			continue
		}
		res.RiderID = newID
		s.results[id] = res
		moved++
		resultID := id
		t.undo = append(t.undo, func() {
			r := s.results[resultID]
			r.RiderID = oldID
			s.results[resultID] = r
		})
	}
	return moved, nil
}

func (t *memTx) UpdateRiderFields(ctx context.Context, id int64, fields model.RiderFields) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s := t.store
	before, ok := s.riders[id]
	if !ok {
		return fmt.Errorf("update rider %d: %w", id, ErrNotFound)
	}
	s.riders[id] = fields.Apply(before)
	t.undo = append(t.undo, func() { s.riders[id] = before })
	return nil
}

func (t *memTx) DeleteRider(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s := t.store
	before, ok := s.riders[id]
	if !ok {
		return fmt.Errorf("delete rider %d: %w", id, ErrNotFound)
	}
	if s.countResultsLocked(id) > 0 {
		return fmt.Errorf("delete rider %d: %w", id, ErrStillReferenced)
	}
	delete(s.riders, id)
	t.undo = append(t.undo, func() { s.riders[id] = before })
	return nil
}

func (t *memTx) RecordMerge(ctx context.Context, entry model.MergeLogEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s := t.store
	n := len(s.mergeLog)
	s.mergeLog = append(s.mergeLog, entry)
	t.undo = append(t.undo, func() { s.mergeLog = s.mergeLog[:n] })
	return nil
}
