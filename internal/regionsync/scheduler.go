package regionsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/region-sentinel/internal/domain"
	"github.com/couchcryptid/region-sentinel/internal/geo"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"
)

// Syncer is the part of Engine the Scheduler drives.
type Syncer interface {
	SyncRegion(ctx context.Context, regionID string, center geo.Coordinate, radiusMiles float64, onProgress ProgressFunc) bool
	GetRegionStatus(ctx context.Context, regionID string) (*domain.RegionVersion, error)
}

// Scheduler re-syncs a fixed set of regions on an interval and serializes
// passes per region.
type Scheduler struct {
	syncer   Syncer
	regions  map[string]domain.Region
	order    []string
	interval time.Duration
	clock    clockwork.Clock
	logger   *slog.Logger

	mu       sync.Mutex
	inFlight map[string]bool
	ready    atomic.Bool
}

// NewScheduler creates a Scheduler for regions. A nil clock uses real time.
func NewScheduler(syncer Syncer, regions []domain.Region, interval time.Duration, clock clockwork.Clock, logger *slog.Logger) *Scheduler {
	s := &Scheduler{
		syncer:   syncer,
		regions:  make(map[string]domain.Region, len(regions)),
		interval: interval,
		clock:    domain.NewClock(clock),
		logger:   logger,
		inFlight: make(map[string]bool),
	}
	for _, r := range regions {
		if _, dup := s.regions[r.ID]; !dup {
			s.order = append(s.order, r.ID)
		}
		s.regions[r.ID] = r
	}
	return s
}

// Run syncs every region immediately and then once per interval until ctx
// is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler started", "regions", len(s.order), "interval", s.interval)

	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.SyncAll(ctx)

		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopping", "reason", ctx.Err())
			return nil
		case <-ticker.Chan():
		}
	}
}

// SyncAll syncs every configured region concurrently and returns how many
// succeeded. Regions already in flight are skipped.
func (s *Scheduler) SyncAll(ctx context.Context) int {
	var succeeded atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	for _, id := range s.order {
		g.Go(func() error {
			ok, err := s.TriggerSync(gctx, id)
			switch {
			case errors.Is(err, domain.ErrSyncInProgress):
				s.logger.Info("region sync skipped, previous pass still running", "region_id", id)
			case ok:
				succeeded.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()
	return int(succeeded.Load())
}

// TriggerSync runs one sync pass for a configured region.
func (s *Scheduler) TriggerSync(ctx context.Context, regionID string) (bool, error) {
	r, ok := s.regions[regionID]
	if !ok {
		return false, fmt.Errorf("%w: %s", domain.ErrUnknownRegion, regionID)
	}
	if !s.acquire(regionID) {
		return false, fmt.Errorf("%w: %s", domain.ErrSyncInProgress, regionID)
	}
	defer s.release(regionID)

	ok = s.syncer.SyncRegion(ctx, r.ID, r.Center, r.RadiusMiles, func(pct int, status string) {
		s.logger.Debug("sync progress", "region_id", r.ID, "percent", pct, "status", status)
	})
	if ok {
		s.ready.Store(true)
	}
	return ok, nil
}

// RegionStatus returns the version record of a configured region, nil if it
// has never synced.
func (s *Scheduler) RegionStatus(ctx context.Context, regionID string) (*domain.RegionVersion, error) {
	if _, ok := s.regions[regionID]; !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownRegion, regionID)
	}
	return s.syncer.GetRegionStatus(ctx, regionID)
}

// CheckReadiness returns nil once any region has synced successfully in this
// process.
func (s *Scheduler) CheckReadiness(_ context.Context) error {
	if !s.ready.Load() {
		return errors.New("no region has synced yet")
	}
	return nil
}

func (s *Scheduler) acquire(regionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight[regionID] {
		return false
	}
	s.inFlight[regionID] = true
	return true
}

func (s *Scheduler) release(regionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, regionID)
}
