// Package sync imports deck files from local directories and git
// repositories into a user's cards, and removes cards whose entries were
// deleted from the deck.
package sync

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	stdsync "sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/conorfennell/lingosrs/internal/domain"
	"github.com/conorfennell/lingosrs/internal/gitsource"
	"github.com/conorfennell/lingosrs/internal/knol"
	"github.com/conorfennell/lingosrs/internal/parser"
)

// Store is the persistence the syncer needs. *storage.DB satisfies it.
type Store interface {
	InsertSource(ctx context.Context, src *domain.Source) error
	FindSourceByPath(ctx context.Context, userID, path string) (*domain.Source, error)
	ListSources(ctx context.Context, userID string) ([]domain.Source, error)
	GetAllSources(ctx context.Context) ([]domain.Source, error)
	DeleteSource(ctx context.Context, userID, id string) (int64, error)
	UpdateSourceLastScanned(ctx context.Context, id string, at time.Time) error
	ListCardsBySource(ctx context.Context, sourceID string) ([]domain.Card, error)
	DeleteCard(ctx context.Context, userID, id string) (int64, error)
}

// Importer turns a parsed draft into a card. *srs.Service satisfies it.
type Importer interface {
	ImportDraft(ctx context.Context, src domain.Source, draft domain.CardDraft) (bool, error)
}

// Report summarises one reconciliation of a source.
type Report struct {
	SourceID string   `json:"sourceId"`
	Path     string   `json:"path"`
	Parsed   int      `json:"parsed"`
	Created  int      `json:"created"`
	Deleted  int      `json:"deleted"`
	Errors   []string `json:"errors,omitempty"`
}

func (r *Report) fail(err error) {
	r.Errors = append(r.Errors, err.Error())
}

// Syncer reconciles deck sources with the cards stored for them.
type Syncer struct {
	store    Store
	importer Importer
	reposDir string
	logger   *zap.Logger
	now      func() time.Time

	// locks serialises reconciliation per source.
	mu      stdsync.Mutex
	locks   map[string]*stdsync.Mutex
	changed []func(context.Context)
}

// NewSyncer returns a Syncer that clones git sources under reposDir.
func NewSyncer(store Store, importer Importer, reposDir string, logger *zap.Logger) *Syncer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Syncer{
		store:    store,
		importer: importer,
		reposDir: reposDir,
		logger:   logger.Named("sync"),
		now:      func() time.Time { return time.Now().UTC() },
		locks:    make(map[string]*stdsync.Mutex),
	}
}

// AddSource registers a local directory or git URL for userID. Local
// paths are made absolute and must be existing directories.
func (s *Syncer) AddSource(ctx context.Context, userID, path string, lang domain.Language) (*domain.Source, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("%w: path is required", domain.ErrValidation)
	}
	if !lang.IsValid() {
		return nil, fmt.Errorf("%w: language must be one of [%s]", domain.ErrValidation, domain.LanguageTag)
	}

	src := &domain.Source{
		ID:        uuid.NewString(),
		UserID:    userID,
		Type:      domain.SourceLocal,
		Path:      path,
		Language:  lang,
		CreatedAt: s.now(),
	}
	if gitsource.IsRemote(path) {
		if _, err := gitsource.LocalPath(s.reposDir, path); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
		}
		src.Type = domain.SourceGit
	} else {
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
		}
		info, err := os.Stat(abs)
		if err != nil || !info.IsDir() {
			return nil, fmt.Errorf("%w: %s is not a directory", domain.ErrValidation, path)
		}
		src.Path = abs
	}

	existing, err := s.store.FindSourceByPath(ctx, userID, src.Path)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: source %s already exists", domain.ErrConflict, src.Path)
	}
	if err := s.store.InsertSource(ctx, src); err != nil {
		return nil, err
	}
	s.logger.Info("source added",
		zap.String("source_id", src.ID),
		zap.String("type", string(src.Type)),
		zap.String("path", src.Path),
	)
	s.sourcesChanged(ctx)
	return src, nil
}

// ListSources returns userID's sources.
func (s *Syncer) ListSources(ctx context.Context, userID string) ([]domain.Source, error) {
	return s.store.ListSources(ctx, userID)
}

// RemoveSource forgets a source. Cards imported from it are kept.
func (s *Syncer) RemoveSource(ctx context.Context, userID, id string) error {
	n, err := s.store.DeleteSource(ctx, userID, id)
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	s.logger.Info("source removed", zap.String("source_id", id))
	s.sourcesChanged(ctx)
	return nil
}

// OnSourcesChanged registers fn to run after a source is added or
// removed.
func (s *Syncer) OnSourcesChanged(fn func(context.Context)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.changed = append(s.changed, fn)
}

func (s *Syncer) sourcesChanged(ctx context.Context) {
	s.mu.Lock()
	hooks := append(([]func(context.Context))(nil), s.changed...)
	s.mu.Unlock()
	for _, fn := range hooks {
		fn(ctx)
	}
}

// SyncUser reconciles every source owned by userID.
func (s *Syncer) SyncUser(ctx context.Context, userID string) ([]Report, error) {
	sources, err := s.store.ListSources(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.syncSources(ctx, sources), nil
}

// SyncAll reconciles every source in the store.
func (s *Syncer) SyncAll(ctx context.Context) ([]Report, error) {
	sources, err := s.store.GetAllSources(ctx)
	if err != nil {
		return nil, err
	}
	s.logger.Info("syncing all sources", zap.Int("sources", len(sources)))
	return s.syncSources(ctx, sources), nil
}

func (s *Syncer) syncSources(ctx context.Context, sources []domain.Source) []Report {
	reports := make([]Report, 0, len(sources))
	for _, src := range sources {
		if ctx.Err() != nil {
			break
		}
		reports = append(reports, s.SyncSource(ctx, src))
	}
	return reports
}

// SyncSource fetches src if it is a git source and reconciles its
// deck files. Failures are recorded in the report.
func (s *Syncer) SyncSource(ctx context.Context, src domain.Source) Report {
	lock := s.lockFor(src.ID)
	lock.Lock()
	defer lock.Unlock()

	report := Report{SourceID: src.ID, Path: src.Path}
	dir := src.Path
	if src.Type == domain.SourceGit {
		local, err := gitsource.LocalPath(s.reposDir, src.Path)
		if err != nil {
			report.fail(err)
			return report
		}
		if err := gitsource.Sync(ctx, src.Path, local, s.logger); err != nil {
			s.logger.Error("git sync failed", zap.String("source_id", src.ID), zap.Error(err))
			report.fail(err)
			return report
		}
		dir = local
	}

	s.reconcile(ctx, src, dir, &report)
	s.logger.Info("reconciliation complete",
		zap.String("source_id", src.ID),
		zap.String("path", dir),
		zap.Int("parsed", report.Parsed),
		zap.Int("created", report.Created),
		zap.Int("deleted", report.Deleted),
		zap.Int("errors", len(report.Errors)),
	)
	return report
}

func (s *Syncer) lockFor(id string) *stdsync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[id]
	if !ok {
		l = &stdsync.Mutex{}
		s.locks[id] = l
	}
	return l
}

// reconcile imports new entries found under dir and deletes cards whose
// entries are gone. Deletion is skipped when any file failed to parse,
// so a broken file never wipes its cards.
func (s *Syncer) reconcile(ctx context.Context, src domain.Source, dir string, report *Report) {
	found := make(map[string]bool)
	parseFailed := false

	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if !parser.Supported(path) {
			return nil
		}

		drafts, err := parser.ParseFile(path)
		if err != nil {
			parseFailed = true
			report.fail(fmt.Errorf("parsing %s: %w", path, err))
			return nil
		}
		for _, draft := range drafts {
			draft.Hash = knol.Hash(draft)
			report.Parsed++
			found[draft.Hash] = true

			created, err := s.importer.ImportDraft(ctx, src, draft)
			if err != nil {
				report.fail(fmt.Errorf("importing %q from %s: %w", draft.Front, path, err))
				continue
			}
			if created {
				report.Created++
			}
		}
		return ctx.Err()
	})
	if walkErr != nil {
		report.fail(fmt.Errorf("walking %s: %w", dir, walkErr))
		return
	}

	if !parseFailed {
		s.deleteOrphans(ctx, src, found, report)
	}

	if err := s.store.UpdateSourceLastScanned(ctx, src.ID, s.now()); err != nil {
		s.logger.Warn("failed to update last scanned", zap.String("source_id", src.ID), zap.Error(err))
	}
}

func (s *Syncer) deleteOrphans(ctx context.Context, src domain.Source, found map[string]bool, report *Report) {
	cards, err := s.store.ListCardsBySource(ctx, src.ID)
	if err != nil {
		report.fail(fmt.Errorf("listing cards: %w", err))
		return
	}
	for _, c := range cards {
		if c.SourceHash == nil || found[*c.SourceHash] {
			continue
		}
		n, err := s.store.DeleteCard(ctx, c.UserID, c.ID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			report.fail(fmt.Errorf("deleting orphaned card %s: %w", c.ID, err))
			continue
		}
		if n > 0 {
			s.logger.Debug("orphaned card deleted", zap.String("card_id", c.ID))
			report.Deleted++
		}
	}
}
