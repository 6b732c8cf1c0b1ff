package application

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/ericfisherdev/forumbridge/internal/domain/model"
	"github.com/ericfisherdev/forumbridge/internal/domain/port/driven"
)

// MappingStore is the authoritative in-memory thread-to-issue mapping, backed
// by a snapshot store. TryInsert is the only way to add an entry and entries
// are never removed.
type MappingStore struct {
	snapshots driven.MappingSnapshotStore
	logger    *slog.Logger

	mu     sync.RWMutex
	issues map[uint64]int

	// persistMu serializes snapshot writes. The mapping only grows, so the
	// snapshot taken by the last writer always contains every earlier one.
	persistMu sync.Mutex
}

// NewMappingStore creates an empty MappingStore. Call Load once at startup.
func NewMappingStore(snapshots driven.MappingSnapshotStore, logger *slog.Logger) *MappingStore {
	return &MappingStore{
		snapshots: snapshots,
		logger:    logger,
		issues:    make(map[uint64]int),
	}
}

// Load replaces the in-memory mapping with the stored snapshot. When no
// snapshot exists yet, it starts empty and writes an initial empty snapshot.
func (s *MappingStore) Load(ctx context.Context) error {
	issues, found, err := s.snapshots.Load(ctx)
	if err != nil {
		return fmt.Errorf("%w: loading snapshot: %w", ErrStoreFailure, err)
	}

	if !found {
		issues = make(map[uint64]int)
		if err := s.snapshots.Save(ctx, issues); err != nil {
			return fmt.Errorf("%w: writing initial snapshot: %w", ErrStoreFailure, err)
		}
		s.logger.Info("no mapping snapshot found, created an empty one")
	}
	if issues == nil {
		issues = make(map[uint64]int)
	}

	s.mu.Lock()
	s.issues = issues
	s.mu.Unlock()

	s.logger.Info("mapping snapshot loaded", "entries", len(issues))
	return nil
}

// TryInsert adds threadID -> issueNumber if threadID has no mapping yet and
// reports whether it did. Concurrent calls for the same thread yield exactly
// one true.
func (s *MappingStore) TryInsert(threadID uint64, issueNumber int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.issues[threadID]; exists {
		return false
	}
	s.issues[threadID] = issueNumber
	return true
}

// Lookup returns the issue number mapped to threadID.
func (s *MappingStore) Lookup(threadID uint64) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	number, ok := s.issues[threadID]
	return number, ok
}

// Persist writes the full mapping to the snapshot store, overwriting the
// previous snapshot.
func (s *MappingStore) Persist(ctx context.Context) error {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.RLock()
	snapshot := maps.Clone(s.issues)
	s.mu.RUnlock()

	if err := s.snapshots.Save(ctx, snapshot); err != nil {
		return fmt.Errorf("%w: %w", ErrStoreFailure, err)
	}

	s.logger.Debug("mapping snapshot persisted", "entries", len(snapshot))
	return nil
}

// Len returns the number of mapped threads.
func (s *MappingStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.issues)
}

// Snapshot returns every mapping entry ordered by thread ID.
func (s *MappingStore) Snapshot() []model.ThreadIssue {
	s.mu.RLock()
	threadIDs := slices.Sorted(maps.Keys(s.issues))
	entries := make([]model.ThreadIssue, 0, len(threadIDs))
	for _, id := range threadIDs {
		entries = append(entries, model.ThreadIssue{ThreadID: id, IssueNumber: s.issues[id]})
	}
	s.mu.RUnlock()

	return entries
}
