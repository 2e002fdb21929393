package driving

import (
	"context"

	"github.com/arbor-labs/arborsync/internal/core/domain"
)

// Records is the façade application code uses for all data access. Fetches
// serve from cache when fresh unless force is set; writes invalidate the
// touched collection's cache entry.
type Records interface {
	FetchNodes(ctx context.Context, force bool) ([]domain.Node, error)
	FetchPaths(ctx context.Context, force bool) ([]domain.Path, error)
	FetchNodePaths(ctx context.Context, force bool) ([]domain.NodePath, error)
	// FetchCategories degrades to an empty list on failure: the folder
	// feature is optional and must not break the surrounding UI.
	FetchCategories(ctx context.Context, force bool) ([]domain.Category, error)

	SavePath(ctx context.Context, p domain.Path) (domain.SaveOutcome, error)
	UpdatePath(ctx context.Context, id string, u domain.PathUpdate) (domain.SaveOutcome, error)
	RenamePath(ctx context.Context, id, name string) (domain.SaveOutcome, error)
	SetPathNodes(ctx context.Context, id string, nodeIDs []string) (domain.SaveOutcome, error)
	SetPathCategory(ctx context.Context, id, categoryID, subCategoryID, subSubCategoryID string) (domain.SaveOutcome, error)
	SetPathNotes(ctx context.Context, id, notes string) (domain.SaveOutcome, error)
	SetPathPriority(ctx context.Context, id string, priority int) (domain.SaveOutcome, error)
	SetPathStatus(ctx context.Context, id, status string) (domain.SaveOutcome, error)
	SetPathFavorite(ctx context.Context, id string, favorite bool) (domain.SaveOutcome, error)
	TouchPath(ctx context.Context, id string) (domain.SaveOutcome, error)
	ArchivePath(ctx context.Context, id string) (domain.SaveOutcome, error)

	SaveNodePath(ctx context.Context, np domain.NodePath) (domain.SaveOutcome, error)
	SaveNodePaths(ctx context.Context, nps []domain.NodePath) error

	AppendPathAudio(ctx context.Context, id string, note domain.AudioNote) (domain.SaveOutcome, error)
	AppendNodePathAudio(ctx context.Context, pathID, nodeID string, note domain.AudioNote) (domain.SaveOutcome, error)

	CreateCategory(ctx context.Context, c domain.Category) error
	RenameCategory(ctx context.Context, id, name string) (domain.SaveOutcome, error)
	SetCategoryParent(ctx context.Context, id, parentID string) (domain.SaveOutcome, error)
	ArchiveCategory(ctx context.Context, id string) (domain.SaveOutcome, error)

	// Probe performs a minimal real read and reports reachability.
	Probe(ctx context.Context) bool
}

// StatusSource exposes the sync status signal for passive observation.
// Subscribing immediately replays the current status to the new listener.
type StatusSource interface {
	Subscribe(fn func(domain.SyncStatus)) (cancel func())
	Status() domain.SyncStatus
}
