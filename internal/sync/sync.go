package sync

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/alfredjeanlab/confengine/internal/store"
)

// Destination is the interface for a sync target (S3, git, etc.).
type Destination interface {
	// Write sends the JSONL payload to the destination.
	Write(ctx context.Context, data []byte) error
}

// Scheduler runs periodic syncs to one or more destinations.
type Scheduler struct {
	store        store.Store
	destinations []Destination
	schedule     string
	logger       *slog.Logger

	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.Mutex // serializes syncOnce
	wg     sync.WaitGroup
}

// Schedule returns the cron expression for a sync: schedule when set, otherwise
// "@every <interval>". It returns "" when syncing is disabled.
func Schedule(schedule string, interval time.Duration) string {
	if schedule != "" {
		return schedule
	}
	if interval <= 0 {
		return ""
	}
	return "@every " + interval.String()
}

// NewScheduler creates a scheduler that exports from the store to the given
// destinations on schedule, a standard five-field cron expression or a
// descriptor such as "@every 3m".
func NewScheduler(s store.Store, destinations []Destination, schedule string, logger *slog.Logger) (*Scheduler, error) {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("invalid sync schedule %q: %w", schedule, err)
	}
	return &Scheduler{
		store:        s,
		destinations: destinations,
		schedule:     schedule,
		logger:       logger,
	}, nil
}

// Start begins periodic sync. It runs an initial sync immediately, then
// on each scheduled tick.
func (s *Scheduler) Start() {
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.cron = cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	// The schedule was validated in NewScheduler.
	_, _ = s.cron.AddFunc(s.schedule, func() { s.syncOnce(s.ctx) })

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.syncOnce(s.ctx)
	}()
	s.cron.Start()
}

// Stop cancels the scheduler and waits for the current sync (if any) to finish.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
	s.wg.Wait()
}

// SyncNow runs one export immediately, outside the schedule.
func (s *Scheduler) SyncNow(ctx context.Context) {
	s.syncOnce(ctx)
}

func (s *Scheduler) syncOnce(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ctx.Err() != nil {
		return
	}

	var buf bytes.Buffer
	if err := ExportJSONL(ctx, s.store, &buf); err != nil {
		s.logger.Error("sync export failed", "err", err)
		return
	}
	data := buf.Bytes()

	for i, dest := range s.destinations {
		if err := dest.Write(ctx, data); err != nil {
			s.logger.Error("sync destination write failed", "destination", fmt.Sprintf("%d", i), "err", err)
		}
	}

	s.logger.Info("sync completed", "destinations", len(s.destinations), "bytes", len(data))
}
