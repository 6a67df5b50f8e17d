package digest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"dealscout/investor-portal/portal-backend/internal/apperr"
	"dealscout/investor-portal/portal-backend/internal/preferences"
	"dealscout/investor-portal/portal-backend/internal/realtime"
	"dealscout/investor-portal/portal-backend/internal/roadmap"
)

// PreferenceLister finds the users subscribed to a frequency.
type PreferenceLister interface {
	ListByFrequency(ctx context.Context, freq preferences.NotificationFrequency) ([]*preferences.PreferenceRecord, error)
}

// PlanReader loads a user's current plan.
type PlanReader interface {
	Current(ctx context.Context, userID string) (*roadmap.Plan, error)
}

// Notifier pushes an event to a user's live connections.
type Notifier interface {
	NotifyUser(userID, eventType string, payload any)
	ConnectionCount(userID string) int
}

// Config holds one cron spec (with seconds) per batched frequency. Empty
// specs are not scheduled.
type Config struct {
	Specs       map[preferences.NotificationFrequency]string
	Concurrency int
	RunTimeout  time.Duration
}

// Scheduler sends digests to daily, weekly and monthly subscribers.
// Real-time subscribers are never scheduled; they get events as they happen.
type Scheduler struct {
	cron     *cron.Cron
	jobs     map[preferences.NotificationFrequency]cron.EntryID
	prefs    PreferenceLister
	plans    PlanReader
	notifier Notifier
	logger   *zap.Logger
	cfg      Config
	now      func() time.Time
	mu       sync.Mutex
	running  bool
}

// NewScheduler registers a cron job for every configured frequency.
func NewScheduler(cfg Config, prefs PreferenceLister, plans PlanReader, notifier Notifier, logger *zap.Logger) (*Scheduler, error) {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 8
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 10 * time.Minute
	}
	s := &Scheduler{
		cron:     cron.New(cron.WithSeconds()),
		jobs:     make(map[preferences.NotificationFrequency]cron.EntryID),
		prefs:    prefs,
		plans:    plans,
		notifier: notifier,
		logger:   logger,
		cfg:      cfg,
		now:      time.Now,
	}

	for freq, spec := range cfg.Specs {
		if spec == "" {
			continue
		}
		if freq == preferences.FrequencyRealTime || !freq.Valid() {
			return nil, fmt.Errorf("cannot schedule digests for frequency %q", freq)
		}
		freq := freq
		id, err := s.cron.AddFunc(spec, func() { s.runJob(freq) })
		if err != nil {
			return nil, fmt.Errorf("invalid %s digest schedule %q: %w", freq, spec, err)
		}
		s.jobs[freq] = id
	}
	return s, nil
}

// Start starts the cron loop.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("digest scheduler already running")
	}
	s.running = true
	s.cron.Start()
	s.logger.Info("Digest scheduler started", zap.Int("jobs", len(s.jobs)))
	for freq := range s.jobs {
		s.logger.Info("Digest job scheduled",
			zap.String("frequency", string(freq)),
			zap.Time("next_run", s.next(freq)))
	}
	return nil
}

// Stop stops the cron loop and waits for running jobs.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	<-s.cron.Stop().Done()
	s.running = false
	s.logger.Info("Digest scheduler stopped")
}

// next returns when the frequency's job fires next, or the zero time when it
// is not scheduled.
func (s *Scheduler) next(freq preferences.NotificationFrequency) time.Time {
	id, ok := s.jobs[freq]
	if !ok {
		return time.Time{}
	}
	return s.cron.Entry(id).Next
}

func (s *Scheduler) runJob(freq preferences.NotificationFrequency) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.RunTimeout)
	defer cancel()

	start := time.Now()
	sent, err := s.Run(ctx, freq)
	if err != nil {
		s.logger.Error("Digest run failed", zap.String("frequency", string(freq)), zap.Error(err))
		return
	}
	s.logger.Info("Digest run completed",
		zap.String("frequency", string(freq)),
		zap.Int("sent", sent),
		zap.Duration("duration", time.Since(start)))
}

// Run sends one digest to every connected subscriber of freq and returns how
// many were sent. A failure loading one user's plan skips that user only.
func (s *Scheduler) Run(ctx context.Context, freq preferences.NotificationFrequency) (int, error) {
	recs, err := s.prefs.ListByFrequency(ctx, freq)
	if err != nil {
		return 0, err
	}

	now := s.now()
	var sent atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for _, rec := range recs {
		if rec == nil || rec.UserID == "" || s.notifier.ConnectionCount(rec.UserID) == 0 {
			continue
		}
		rec := rec
		g.Go(func() error {
			plan, err := s.plans.Current(gctx, rec.UserID)
			if err != nil && !apperr.Is(err, apperr.CodeNotFound) {
				s.logger.Warn("Skipping digest", zap.String("user_id", rec.UserID), zap.Error(err))
				return nil
			}
			d, ok := Build(rec, plan, now)
			if !ok {
				return nil
			}
			s.notifier.NotifyUser(rec.UserID, realtime.EventDigest, d)
			sent.Add(1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return int(sent.Load()), err
	}
	return int(sent.Load()), ctx.Err()
}
