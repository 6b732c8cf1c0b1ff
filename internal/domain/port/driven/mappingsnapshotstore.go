package driven

import "context"

// MappingSnapshotStore persists the whole thread-to-issue mapping as a single
// snapshot. Save overwrites the previous snapshot entirely.
type MappingSnapshotStore interface {
	// Load returns the last saved snapshot. found is false when nothing has
	// ever been saved, which is distinct from an empty saved snapshot.
	Load(ctx context.Context) (issues map[uint64]int, found bool, err error)

	// Save replaces the stored snapshot with issues.
	Save(ctx context.Context, issues map[uint64]int) error
}
