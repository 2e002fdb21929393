package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/arbor-labs/arborsync/internal/adapters/driven/notion"
	"github.com/arbor-labs/arborsync/internal/core/domain"
	"github.com/arbor-labs/arborsync/internal/core/ports/driven"
	"github.com/arbor-labs/arborsync/internal/core/ports/driving"
	"github.com/arbor-labs/arborsync/internal/logger"
)

// batchSize bounds how many NodePath saves run concurrently. Batch N+1 does
// not start until batch N fully settles.
const batchSize = 5

// queryPageSize is the page size used when following fetch-all cursors.
const queryPageSize = 100

// Databases holds the remote database ids, one per collection.
type Databases struct {
	Nodes      string
	Paths      string
	NodePaths  string
	Categories string
}

// RecordServiceOptions wires the service's collaborators.
type RecordServiceOptions struct {
	Queue     *OfflineQueue
	Cache     *RecordCache
	Clock     driven.Clock
	Databases Databases

	// ValidateCategoryCycles enables the parent-cycle check on category
	// writes. Off by default: the curated data never had one, but the
	// model does not forbid it either.
	ValidateCategoryCycles bool
}

// Ensure RecordService implements the façade port.
var _ driving.Records = (*RecordService)(nil)

// RecordService is the single entry point for data access. It owns
// pagination, identifier resolution and cross-entity consistency; transport
// concerns live in the queue and client below it.
//
// SaveOutcome results are meaningful only when the returned error is nil.
type RecordService struct {
	queue *OfflineQueue
	cache *RecordCache
	clock driven.Clock
	dbs   Databases

	validateCycles atomic.Bool
}

// NewRecordService creates the record façade.
func NewRecordService(opts RecordServiceOptions) *RecordService {
	s := &RecordService{
		queue: opts.Queue,
		cache: opts.Cache,
		clock: opts.Clock,
		dbs:   opts.Databases,
	}
	s.validateCycles.Store(opts.ValidateCategoryCycles)
	return s
}

// SetValidateCategoryCycles toggles the parent-cycle check at runtime
// (config hot-reload).
func (s *RecordService) SetValidateCategoryCycles(enabled bool) {
	s.validateCycles.Store(enabled)
}

// queryAll follows the cursor token across repeated query calls until the
// remote API reports no further pages, concatenating results in order.
func (s *RecordService) queryAll(ctx context.Context, databaseID string) ([]notion.Page, error) {
	var pages []notion.Page
	cursor := ""
	for {
		body := notion.QueryRequest{StartCursor: cursor, PageSize: queryPageSize}
		raw, err := s.queue.Read(ctx, http.MethodPost, notion.QueryPath(databaseID), body)
		if err != nil {
			return nil, err
		}
		var resp notion.QueryResponse
		if err := json.Unmarshal(raw, &resp); err != nil {
			return nil, fmt.Errorf("decode query response: %w", err)
		}
		pages = append(pages, resp.Results...)
		if !resp.HasMore || resp.NextCursor == "" {
			return pages, nil
		}
		cursor = resp.NextCursor
	}
}

// queryByID resolves an application identifier to its page via an equality
// filter on the indexed id property. A miss is domain.ErrNotFound.
func (s *RecordService) queryByID(ctx context.Context, databaseID, id string) (notion.Page, error) {
	body := notion.QueryRequest{Filter: notion.IDFilter(id), PageSize: 1}
	raw, err := s.queue.Read(ctx, http.MethodPost, notion.QueryPath(databaseID), body)
	if err != nil {
		return notion.Page{}, err
	}
	var resp notion.QueryResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return notion.Page{}, fmt.Errorf("decode query response: %w", err)
	}
	if len(resp.Results) == 0 {
		return notion.Page{}, domain.ErrNotFound
	}
	return resp.Results[0], nil
}

func (s *RecordService) createPage(ctx context.Context, databaseID string, props map[string]any) (notion.Page, error) {
	body := notion.CreatePageRequest{Parent: notion.Parent{DatabaseID: databaseID}, Properties: props}
	raw, err := s.queue.Write(ctx, http.MethodPost, "pages", body)
	if err != nil {
		return notion.Page{}, err
	}
	var page notion.Page
	if err := json.Unmarshal(raw, &page); err != nil {
		return notion.Page{}, fmt.Errorf("decode created page: %w", err)
	}
	return page, nil
}

func (s *RecordService) updatePage(ctx context.Context, pageID string, props map[string]any) error {
	body := notion.UpdatePageRequest{Properties: props}
	_, err := s.queue.Write(ctx, http.MethodPatch, notion.PagePath(pageID), body)
	return err
}

func (s *RecordService) archivePage(ctx context.Context, pageID string) error {
	archived := true
	body := notion.UpdatePageRequest{Archived: &archived}
	_, err := s.queue.Write(ctx, http.MethodPatch, notion.PagePath(pageID), body)
	return err
}

// FetchNodes returns all node records, from cache while fresh.
func (s *RecordService) FetchNodes(ctx context.Context, force bool) ([]domain.Node, error) {
	if !force {
		if v, ok := s.cache.Get(CollectionNodes); ok {
			return v.([]domain.Node), nil
		}
	}
	pages, err := s.queryAll(ctx, s.dbs.Nodes)
	if err != nil {
		return nil, err
	}
	nodes := make([]domain.Node, 0, len(pages))
	for _, p := range pages {
		nodes = append(nodes, notion.DecodeNode(p))
	}
	s.cache.Put(CollectionNodes, nodes)
	return nodes, nil
}

// FetchPaths returns all path records, from cache while fresh. Discovered
// identifier-to-page-id mappings are merged into the lookup cache.
func (s *RecordService) FetchPaths(ctx context.Context, force bool) ([]domain.Path, error) {
	if !force {
		if v, ok := s.cache.Get(CollectionPaths); ok {
			return v.([]domain.Path), nil
		}
	}
	pages, err := s.queryAll(ctx, s.dbs.Paths)
	if err != nil {
		return nil, err
	}
	paths := make([]domain.Path, 0, len(pages))
	for _, p := range pages {
		path := notion.DecodePath(p)
		s.cache.PutPathPageID(path.ID, p.ID)
		paths = append(paths, path)
	}
	s.cache.Put(CollectionPaths, paths)
	return paths, nil
}

// FetchNodePaths returns all node-note records, from cache while fresh.
func (s *RecordService) FetchNodePaths(ctx context.Context, force bool) ([]domain.NodePath, error) {
	if !force {
		if v, ok := s.cache.Get(CollectionNodePaths); ok {
			return v.([]domain.NodePath), nil
		}
	}
	pages, err := s.queryAll(ctx, s.dbs.NodePaths)
	if err != nil {
		return nil, err
	}
	nps := make([]domain.NodePath, 0, len(pages))
	for _, p := range pages {
		np := notion.DecodeNodePath(p)
		s.cache.PutNodePathPageID(np.ID, p.ID)
		nps = append(nps, np)
	}
	s.cache.Put(CollectionNodePaths, nps)
	return nps, nil
}

// FetchCategories returns all categories, from cache while fresh. A fetch
// failure degrades to an empty list: folders are optional and must not break
// the surrounding UI.
func (s *RecordService) FetchCategories(ctx context.Context, force bool) ([]domain.Category, error) {
	if !force {
		if v, ok := s.cache.Get(CollectionCategories); ok {
			return v.([]domain.Category), nil
		}
	}
	pages, err := s.queryAll(ctx, s.dbs.Categories)
	if err != nil {
		logger.Warn("category fetch failed, continuing without folders: %v", err)
		return []domain.Category{}, nil
	}
	cats := make([]domain.Category, 0, len(pages))
	for _, p := range pages {
		cats = append(cats, notion.DecodeCategory(p))
	}
	s.cache.Put(CollectionCategories, cats)
	return cats, nil
}

// resolvePathPageID maps an application path id to its remote page id,
// first via the lookup cache, then via a filtered query.
func (s *RecordService) resolvePathPageID(ctx context.Context, id string) (string, error) {
	if pageID, ok := s.cache.PathPageID(id); ok {
		return pageID, nil
	}
	page, err := s.queryByID(ctx, s.dbs.Paths, id)
	if err != nil {
		return "", err
	}
	s.cache.PutPathPageID(id, page.ID)
	return page.ID, nil
}

func (s *RecordService) resolveNodePathPageID(ctx context.Context, id string) (string, error) {
	if pageID, ok := s.cache.NodePathPageID(id); ok {
		return pageID, nil
	}
	page, err := s.queryByID(ctx, s.dbs.NodePaths, id)
	if err != nil {
		return "", err
	}
	s.cache.PutNodePathPageID(id, page.ID)
	return page.ID, nil
}

// today is the date stamp written into lastUpdated fields.
func (s *RecordService) today() string {
	return s.clock.Now().Format("2006-01-02")
}

// SavePath upserts a path by its application identifier: an existing record
// is updated in place, a missing one is created. Either way the lastUpdated
// stamp is refreshed, because paths are sorted by recency.
func (s *RecordService) SavePath(ctx context.Context, p domain.Path) (domain.SaveOutcome, error) {
	if p.ID == "" || p.Name == "" {
		return domain.OutcomeNotFound, fmt.Errorf("%w: path id and name are required", domain.ErrInvalidInput)
	}
	p.LastUpdated = s.today()

	pageID, err := s.resolvePathPageID(ctx, p.ID)
	switch {
	case err == nil:
		update := domain.PathUpdate{
			Name:             &p.Name,
			NodeIDs:          &p.NodeIDs,
			CategoryID:       &p.CategoryID,
			SubCategoryID:    &p.SubCategoryID,
			SubSubCategoryID: &p.SubSubCategoryID,
			Notes:            &p.Notes,
			Status:           &p.Status,
			LastUpdated:      &p.LastUpdated,
			Favorite:         &p.Favorite,
		}
		if p.Priority != nil {
			update.Priority = p.Priority
		}
		if p.AudioNotes != nil {
			update.AudioNotes = &p.AudioNotes
		}
		if err := s.updatePage(ctx, pageID, notion.EncodePathUpdate(update)); err != nil {
			return domain.OutcomeNotFound, err
		}
		s.cache.Invalidate(CollectionPaths)
		return domain.OutcomeUpdated, nil

	case errors.Is(err, domain.ErrNotFound):
		page, err := s.createPage(ctx, s.dbs.Paths, notion.EncodePath(p))
		if err != nil {
			return domain.OutcomeNotFound, err
		}
		s.cache.PutPathPageID(p.ID, page.ID)
		s.cache.Invalidate(CollectionPaths)
		return domain.OutcomeCreated, nil

	default:
		return domain.OutcomeNotFound, err
	}
}

// UpdatePath applies a partial update to a path. An identifier that resolves
// to nothing is a no-op reported as OutcomeNotFound with a warning, not an
// error.
func (s *RecordService) UpdatePath(ctx context.Context, id string, u domain.PathUpdate) (domain.SaveOutcome, error) {
	pageID, err := s.resolvePathPageID(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		logger.Warn("path %q not found, update skipped", id)
		return domain.OutcomeNotFound, nil
	}
	if err != nil {
		return domain.OutcomeNotFound, err
	}
	if err := s.updatePage(ctx, pageID, notion.EncodePathUpdate(u)); err != nil {
		return domain.OutcomeNotFound, err
	}
	s.cache.Invalidate(CollectionPaths)
	return domain.OutcomeUpdated, nil
}

// RenamePath changes a path's display name.
func (s *RecordService) RenamePath(ctx context.Context, id, name string) (domain.SaveOutcome, error) {
	return s.UpdatePath(ctx, id, domain.PathUpdate{Name: &name})
}

// SetPathNodes replaces a path's ordered node list.
func (s *RecordService) SetPathNodes(ctx context.Context, id string, nodeIDs []string) (domain.SaveOutcome, error) {
	return s.UpdatePath(ctx, id, domain.PathUpdate{NodeIDs: &nodeIDs})
}

// SetPathCategory re-files a path under a category chain.
func (s *RecordService) SetPathCategory(ctx context.Context, id, categoryID, subCategoryID, subSubCategoryID string) (domain.SaveOutcome, error) {
	return s.UpdatePath(ctx, id, domain.PathUpdate{
		CategoryID:       &categoryID,
		SubCategoryID:    &subCategoryID,
		SubSubCategoryID: &subSubCategoryID,
	})
}

// SetPathNotes replaces a path's free-text notes.
func (s *RecordService) SetPathNotes(ctx context.Context, id, notes string) (domain.SaveOutcome, error) {
	return s.UpdatePath(ctx, id, domain.PathUpdate{Notes: &notes})
}

// SetPathPriority sets the 0-100 ranking.
func (s *RecordService) SetPathPriority(ctx context.Context, id string, priority int) (domain.SaveOutcome, error) {
	if priority < 0 || priority > 100 {
		return domain.OutcomeNotFound, fmt.Errorf("%w: priority %d outside 0-100", domain.ErrInvalidInput, priority)
	}
	return s.UpdatePath(ctx, id, domain.PathUpdate{Priority: &priority})
}

// SetPathStatus sets the free-form status string.
func (s *RecordService) SetPathStatus(ctx context.Context, id, status string) (domain.SaveOutcome, error) {
	return s.UpdatePath(ctx, id, domain.PathUpdate{Status: &status})
}

// SetPathFavorite toggles the favourite flag.
func (s *RecordService) SetPathFavorite(ctx context.Context, id string, favorite bool) (domain.SaveOutcome, error) {
	return s.UpdatePath(ctx, id, domain.PathUpdate{Favorite: &favorite})
}

// TouchPath refreshes a path's lastUpdated stamp so it sorts to the top of
// the recency-ordered list.
func (s *RecordService) TouchPath(ctx context.Context, id string) (domain.SaveOutcome, error) {
	stamp := s.today()
	return s.UpdatePath(ctx, id, domain.PathUpdate{LastUpdated: &stamp})
}

// ArchivePath soft-deletes a path and bulk-deletes its node notes.
func (s *RecordService) ArchivePath(ctx context.Context, id string) (domain.SaveOutcome, error) {
	pageID, err := s.resolvePathPageID(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		logger.Warn("path %q not found, archive skipped", id)
		return domain.OutcomeNotFound, nil
	}
	if err != nil {
		return domain.OutcomeNotFound, err
	}
	if err := s.archivePage(ctx, pageID); err != nil {
		return domain.OutcomeNotFound, err
	}
	s.cache.DropPathPageID(id)
	s.cache.Invalidate(CollectionPaths)

	if err := s.archiveNodePathsFor(ctx, id); err != nil {
		return domain.OutcomeUpdated, fmt.Errorf("archive node notes for %q: %w", id, err)
	}
	return domain.OutcomeUpdated, nil
}

// archiveNodePathsFor removes every node note belonging to a path, in
// bounded-concurrency batches.
func (s *RecordService) archiveNodePathsFor(ctx context.Context, pathID string) error {
	nps, err := s.FetchNodePaths(ctx, true)
	if err != nil {
		return err
	}
	var doomed []domain.NodePath
	for _, np := range nps {
		if np.PathID == pathID || domain.HasNodePathPrefix(np.ID, pathID) {
			doomed = append(doomed, np)
		}
	}
	if len(doomed) == 0 {
		return nil
	}
	err = s.inBatches(ctx, len(doomed), func(ctx context.Context, i int) error {
		np := doomed[i]
		pageID, err := s.resolveNodePathPageID(ctx, np.ID)
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := s.archivePage(ctx, pageID); err != nil {
			return err
		}
		s.cache.DropNodePathPageID(np.ID)
		return nil
	})
	s.cache.Invalidate(CollectionNodePaths)
	return err
}

// SaveNodePath upserts the notes for one node within one path under the
// derived {pathId}_{nodeId} identifier, then touches the parent path.
func (s *RecordService) SaveNodePath(ctx context.Context, np domain.NodePath) (domain.SaveOutcome, error) {
	if np.PathID == "" || np.NodeID == "" {
		return domain.OutcomeNotFound, fmt.Errorf("%w: pathId and nodeId are required", domain.ErrInvalidInput)
	}
	np.ID = domain.NodePathID(np.PathID, np.NodeID)

	outcome := domain.OutcomeUpdated
	pageID, err := s.resolveNodePathPageID(ctx, np.ID)
	switch {
	case err == nil:
		update := notion.EncodeNodePathUpdate(&np.Content, &np.AudioNotes)
		if err := s.updatePage(ctx, pageID, update); err != nil {
			return domain.OutcomeNotFound, err
		}

	case errors.Is(err, domain.ErrNotFound):
		page, err := s.createPage(ctx, s.dbs.NodePaths, notion.EncodeNodePath(np))
		if err != nil {
			return domain.OutcomeNotFound, err
		}
		s.cache.PutNodePathPageID(np.ID, page.ID)
		outcome = domain.OutcomeCreated

	default:
		return domain.OutcomeNotFound, err
	}

	s.cache.Invalidate(CollectionNodePaths)
	// Touching the parent also invalidates the paths collection.
	if _, err := s.TouchPath(ctx, np.PathID); err != nil {
		return outcome, err
	}
	return outcome, nil
}

// SaveNodePaths upserts many node notes in batches of five: records within a
// batch run concurrently, batches run strictly one after another.
func (s *RecordService) SaveNodePaths(ctx context.Context, nps []domain.NodePath) error {
	return s.inBatches(ctx, len(nps), func(ctx context.Context, i int) error {
		_, err := s.SaveNodePath(ctx, nps[i])
		return err
	})
}

// inBatches runs fn for indexes 0..n-1 in fixed-size concurrent batches.
func (s *RecordService) inBatches(ctx context.Context, n int, fn func(ctx context.Context, i int) error) error {
	for start := 0; start < n; start += batchSize {
		end := start + batchSize
		if end > n {
			end = n
		}
		g, gctx := errgroup.WithContext(ctx)
		for i := start; i < end; i++ {
			i := i
			g.Go(func() error { return fn(gctx, i) })
		}
		if err := g.Wait(); err != nil {
			return err
		}
	}
	return nil
}

// AppendPathAudio attaches a new recording to a path. The remote model has
// no delta updates for the audio list, so the current full list is read,
// appended to, and resubmitted.
func (s *RecordService) AppendPathAudio(ctx context.Context, id string, note domain.AudioNote) (domain.SaveOutcome, error) {
	page, err := s.queryByID(ctx, s.dbs.Paths, id)
	if errors.Is(err, domain.ErrNotFound) {
		logger.Warn("path %q not found, audio note dropped", id)
		return domain.OutcomeNotFound, nil
	}
	if err != nil {
		return domain.OutcomeNotFound, err
	}
	s.cache.PutPathPageID(id, page.ID)

	notes := append(notion.DecodePath(page).AudioNotes, note)
	if err := s.updatePage(ctx, page.ID, notion.EncodePathUpdate(domain.PathUpdate{AudioNotes: &notes})); err != nil {
		return domain.OutcomeNotFound, err
	}
	s.cache.Invalidate(CollectionPaths)
	return domain.OutcomeUpdated, nil
}

// AppendNodePathAudio attaches a new recording to a node note, creating the
// note when the (path, node) pair has none yet.
func (s *RecordService) AppendNodePathAudio(ctx context.Context, pathID, nodeID string, note domain.AudioNote) (domain.SaveOutcome, error) {
	id := domain.NodePathID(pathID, nodeID)
	page, err := s.queryByID(ctx, s.dbs.NodePaths, id)
	switch {
	case err == nil:
		s.cache.PutNodePathPageID(id, page.ID)
		notes := append(notion.DecodeNodePath(page).AudioNotes, note)
		if err := s.updatePage(ctx, page.ID, notion.EncodeNodePathUpdate(nil, &notes)); err != nil {
			return domain.OutcomeNotFound, err
		}
		s.cache.Invalidate(CollectionNodePaths)
		return domain.OutcomeUpdated, nil

	case errors.Is(err, domain.ErrNotFound):
		return s.SaveNodePath(ctx, domain.NodePath{
			PathID:     pathID,
			NodeID:     nodeID,
			AudioNotes: []domain.AudioNote{note},
		})

	default:
		return domain.OutcomeNotFound, err
	}
}

// CreateCategory adds a folder. With cycle validation enabled, a parent
// chain that would loop back is rejected.
func (s *RecordService) CreateCategory(ctx context.Context, c domain.Category) error {
	if c.ID == "" || c.Name == "" {
		return fmt.Errorf("%w: category id and name are required", domain.ErrInvalidInput)
	}
	if err := s.checkCategoryCycle(ctx, c.ID, c.ParentID); err != nil {
		return err
	}
	if _, err := s.createPage(ctx, s.dbs.Categories, notion.EncodeCategory(c)); err != nil {
		return err
	}
	s.cache.Invalidate(CollectionCategories)
	return nil
}

// RenameCategory changes a folder's display name.
func (s *RecordService) RenameCategory(ctx context.Context, id, name string) (domain.SaveOutcome, error) {
	return s.updateCategory(ctx, id, notion.EncodeCategoryUpdate(&name, nil))
}

// SetCategoryParent re-parents a folder; "" moves it to the root.
func (s *RecordService) SetCategoryParent(ctx context.Context, id, parentID string) (domain.SaveOutcome, error) {
	if err := s.checkCategoryCycle(ctx, id, parentID); err != nil {
		return domain.OutcomeNotFound, err
	}
	return s.updateCategory(ctx, id, notion.EncodeCategoryUpdate(nil, &parentID))
}

// ArchiveCategory soft-deletes a folder. Paths filed under it keep their
// category ids; the viewer treats dangling ids as uncategorised.
func (s *RecordService) ArchiveCategory(ctx context.Context, id string) (domain.SaveOutcome, error) {
	cat, ok, err := s.findCategory(ctx, id)
	if err != nil {
		return domain.OutcomeNotFound, err
	}
	if !ok {
		logger.Warn("category %q not found, archive skipped", id)
		return domain.OutcomeNotFound, nil
	}
	if err := s.archivePage(ctx, cat.PageID); err != nil {
		return domain.OutcomeNotFound, err
	}
	s.cache.Invalidate(CollectionCategories)
	return domain.OutcomeUpdated, nil
}

func (s *RecordService) updateCategory(ctx context.Context, id string, props map[string]any) (domain.SaveOutcome, error) {
	cat, ok, err := s.findCategory(ctx, id)
	if err != nil {
		return domain.OutcomeNotFound, err
	}
	if !ok {
		logger.Warn("category %q not found, update skipped", id)
		return domain.OutcomeNotFound, nil
	}
	if err := s.updatePage(ctx, cat.PageID, props); err != nil {
		return domain.OutcomeNotFound, err
	}
	s.cache.Invalidate(CollectionCategories)
	return domain.OutcomeUpdated, nil
}

// findCategory scans the (cached, then forced) category list for an id.
// Categories are few, so there is no per-id lookup cache for them.
func (s *RecordService) findCategory(ctx context.Context, id string) (domain.Category, bool, error) {
	for _, force := range []bool{false, true} {
		cats, err := s.FetchCategories(ctx, force)
		if err != nil {
			return domain.Category{}, false, err
		}
		for _, c := range cats {
			if c.ID == id {
				return c, true, nil
			}
		}
	}
	return domain.Category{}, false, nil
}

func (s *RecordService) checkCategoryCycle(ctx context.Context, id, parentID string) error {
	if !s.validateCycles.Load() || parentID == "" {
		return nil
	}
	cats, err := s.FetchCategories(ctx, false)
	if err != nil {
		return err
	}
	if domain.FindCategoryCycle(cats, id, parentID) {
		return fmt.Errorf("%w: %q cannot be a descendant of itself", domain.ErrCategoryCycle, id)
	}
	return nil
}

// Probe performs a minimal real read against the paths database and reports
// reachability. An authentication failure is logged distinctly but still
// reported as unreachable; a successful probe flips the queue back online.
func (s *RecordService) Probe(ctx context.Context) bool {
	body := notion.QueryRequest{PageSize: 1}
	_, err := s.queue.Read(ctx, http.MethodPost, notion.QueryPath(s.dbs.Paths), body)
	if err == nil {
		s.queue.SetOnline(true)
		return true
	}
	if notion.IsUnauthorized(err) {
		logger.Warn("probe failed: authentication rejected (check the proxy's API secret)")
		return false
	}
	if errors.Is(err, domain.ErrUnreachable) {
		s.queue.SetOnline(false)
	}
	logger.Debug("probe failed: %v", err)
	return false
}
