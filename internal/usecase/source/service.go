package source

import (
	"context"
	"fmt"
	"log/slog"

	"crawl-dashboard/internal/domain/entity"
	"crawl-dashboard/internal/observability/metrics"
)

// Backend is the part of the crawl API the commands use.
type Backend interface {
	ListSources(ctx context.Context) ([]entity.Source, error)
	CreateSource(ctx context.Context, req entity.CreateRequest) (entity.Source, error)
	StartCrawl(ctx context.Context, id string) (string, error)
	StopCrawl(ctx context.Context, id string) error
	UpdateOptions(ctx context.Context, id string, payload map[string]any) error
	FetchDerivedStats(ctx context.Context, id string) (entity.Stats, error)
	ListRuns(ctx context.Context, limit int) ([]entity.Run, error)
}

// Catalog provides the currently published sources and accepts refresh
// requests. The polling controller is the usual implementation.
type Catalog interface {
	Sources() []entity.Source
	RequestRefresh(silent bool)
}

// Service runs operator commands against the backend.
// When Catalog is nil, lookups go to the backend and no refresh is requested.
type Service struct {
	Backend Backend
	Catalog Catalog
	Logger  *slog.Logger
}

func (s *Service) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

func (s *Service) refresh(silent bool) {
	if s.Catalog != nil {
		s.Catalog.RequestRefresh(silent)
	}
}

// List returns the known sources, from the catalog when one is set.
func (s *Service) List(ctx context.Context) ([]entity.Source, error) {
	if s.Catalog != nil {
		return s.Catalog.Sources(), nil
	}
	sources, err := s.Backend.ListSources(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	return sources, nil
}

// Search returns the sources whose name or url contains query,
// case-insensitively. A blank query returns every source.
func (s *Service) Search(ctx context.Context, query string) ([]entity.Source, error) {
	sources, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return Filter(sources, query), nil
}

// Filter returns the sources matching query, in their original order.
func Filter(sources []entity.Source, query string) []entity.Source {
	out := make([]entity.Source, 0, len(sources))
	for _, src := range sources {
		if src.Matches(query) {
			out = append(out, src)
		}
	}
	return out
}

// Get returns one source by id, or entity.ErrNotFound.
func (s *Service) Get(ctx context.Context, id string) (entity.Source, error) {
	sources, err := s.List(ctx)
	if err != nil {
		return entity.Source{}, err
	}
	for _, src := range sources {
		if src.ID == id {
			return src, nil
		}
	}
	return entity.Source{}, fmt.Errorf("source %s: %w", id, entity.ErrNotFound)
}

// Create validates req and creates the source. Nothing is sent when
// validation fails. A successful create triggers a visible refresh.
func (s *Service) Create(ctx context.Context, req entity.CreateRequest) (entity.Source, error) {
	if err := req.Validate(); err != nil {
		return entity.Source{}, err
	}
	created, err := s.Backend.CreateSource(ctx, req)
	metrics.RecordCommand("create", err)
	if err != nil {
		s.logger().Error("failed to create source",
			slog.String("name", req.Name),
			slog.String("url", req.URL),
			slog.Any("error", err))
		return entity.Source{}, err
	}
	s.logger().Info("source created",
		slog.String("source_id", created.ID),
		slog.String("name", created.Name))
	s.refresh(false)
	return created, nil
}

// Start starts a crawl and returns the run id, which may be empty.
func (s *Service) Start(ctx context.Context, id string) (string, error) {
	if id == "" {
		return "", &entity.ValidationError{Field: "id", Message: "is required"}
	}
	runID, err := s.Backend.StartCrawl(ctx, id)
	metrics.RecordCommand("start", err)
	if err != nil {
		s.logger().Error("failed to start crawler", slog.String("source_id", id), slog.Any("error", err))
		return "", err
	}
	s.logger().Info("crawler started", slog.String("source_id", id), slog.String("run_id", runID))
	s.refresh(false)
	return runID, nil
}

// Stop asks the backend to stop a crawl.
func (s *Service) Stop(ctx context.Context, id string) error {
	if id == "" {
		return &entity.ValidationError{Field: "id", Message: "is required"}
	}
	err := s.Backend.StopCrawl(ctx, id)
	metrics.RecordCommand("stop", err)
	if err != nil {
		s.logger().Error("failed to stop crawler", slog.String("source_id", id), slog.Any("error", err))
		return err
	}
	s.logger().Info("crawler stopped", slog.String("source_id", id))
	s.refresh(false)
	return nil
}

// SaveOptions updates the keyword filter and run options of a source.
//
// It is refused with entity.ErrOptionsLocked while the source is running.
// Once an update has been attempted a refresh is requested whatever the
// outcome, since a failed fallback chain may still have applied part of it.
func (s *Service) SaveOptions(ctx context.Context, id string, filter entity.KeywordFilter, opts entity.RunOptions) error {
	if err := opts.Validate(); err != nil {
		return err
	}
	src, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !src.CanEditOptions() {
		metrics.RecordCommand("save_options", entity.ErrOptionsLocked)
		return fmt.Errorf("source %s: %w", id, entity.ErrOptionsLocked)
	}

	err = s.Backend.UpdateOptions(ctx, id, entity.UpdatePayload(filter, opts))
	metrics.RecordCommand("save_options", err)
	s.refresh(false)
	if err != nil {
		s.logger().Error("failed to update options", slog.String("source_id", id), slog.Any("error", err))
		return err
	}
	s.logger().Info("options updated",
		slog.String("source_id", id),
		slog.String("keyword_filter", string(filter)))
	return nil
}

// Stats returns the derived stats of one source.
func (s *Service) Stats(ctx context.Context, id string) (entity.Stats, error) {
	stats, err := s.Backend.FetchDerivedStats(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("stats for source %s: %w", id, err)
	}
	return stats, nil
}

// RecentRuns returns up to limit crawl runs, newest first.
func (s *Service) RecentRuns(ctx context.Context, limit int) ([]entity.Run, error) {
	runs, err := s.Backend.ListRuns(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("recent runs: %w", err)
	}
	return runs, nil
}
