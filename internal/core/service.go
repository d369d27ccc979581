package core

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/folio/internal/store"
)

// refreshConcurrency bounds parallel store reads in RefreshAll.
const refreshConcurrency = 4

// Service owns the store, one Manager per registered collection and the
// audit log.
type Service struct {
	store    store.Store
	audit    *AuditLog
	logger   *slog.Logger
	managers map[string]*Manager
	keys     []string

	mu   sync.Mutex
	cron *cron.Cron
}

// ServiceOptions configures a Service.
type ServiceOptions struct {
	PageSize int
	Logger   *slog.Logger
	Now      func() time.Time
}

// NewService creates a manager for every registered collection.
func NewService(s store.Store, opts ServiceOptions) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	audit := NewAuditLog(s, logger)
	if opts.Now != nil {
		audit.now = opts.Now
	}

	svc := &Service{
		store:    s,
		audit:    audit,
		logger:   logger,
		managers: make(map[string]*Manager),
	}
	for _, def := range All() {
		svc.managers[def.Info.Key] = NewManager(def, s, audit, ManagerOptions{
			PageSize: opts.PageSize,
			Logger:   logger,
			Now:      opts.Now,
		})
		svc.keys = append(svc.keys, def.Info.Key)
	}
	return svc
}

// Store returns the underlying document store.
func (s *Service) Store() store.Store { return s.store }

// Audit returns the audit log.
func (s *Service) Audit() *AuditLog { return s.audit }

// Manager returns the manager for a collection key.
func (s *Service) Manager(key string) (*Manager, error) {
	m, ok := s.managers[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCollection, key)
	}
	return m, nil
}

// Managers returns every manager ordered by collection key.
func (s *Service) Managers() []*Manager {
	out := make([]*Manager, len(s.keys))
	for i, k := range s.keys {
		out[i] = s.managers[k]
	}
	return out
}

// Collections summarizes every collection.
func (s *Service) Collections() []CollectionSummary {
	out := make([]CollectionSummary, len(s.keys))
	for i, k := range s.keys {
		out[i] = s.managers[k].Summary()
	}
	return out
}

// RefreshAll refreshes every collection concurrently. Every manager is
// refreshed even when another fails; the first error is returned.
func (s *Service) RefreshAll(ctx context.Context) error {
	start := time.Now()

	var g errgroup.Group
	g.SetLimit(refreshConcurrency)
	for _, m := range s.Managers() {
		g.Go(func() error {
			return m.Refresh(ctx)
		})
	}
	err := g.Wait()

	s.logger.Info("collections refreshed",
		"collections", len(s.keys),
		"duration_ms", time.Since(start).Milliseconds(),
		"error", err,
	)
	return err
}

// Close stops background jobs. The store is owned by the caller.
func (s *Service) Close() {
	s.StopScheduler()
}
