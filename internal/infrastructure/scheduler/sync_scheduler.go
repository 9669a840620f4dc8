package scheduler

import (
	"context"
	"errors"
	stdsync "sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	appsync "github.com/dentalab/erpsync/internal/application/sync"
	"github.com/dentalab/erpsync/internal/domain/sync"
)

// SyncTrigger starts one sync run for a module. Satisfied by the
// application orchestrator.
type SyncTrigger interface {
	TriggerSync(ctx context.Context, tenantID uuid.UUID, module sync.Module) (*appsync.RunReport, error)
}

// SyncSchedulerConfig holds configuration for the periodic sync scheduler
type SyncSchedulerConfig struct {
	// Enabled determines if the scheduler is active
	Enabled bool

	// Interval is how often the configured modules are synced
	Interval time.Duration

	// Modules lists which modules the scheduler triggers each tick.
	// Empty means all modules in canonical order.
	Modules []sync.Module

	// TenantID is the tenant the scheduled runs belong to
	TenantID uuid.UUID
}

// DefaultSyncSchedulerConfig returns default configuration
func DefaultSyncSchedulerConfig() SyncSchedulerConfig {
	return SyncSchedulerConfig{
		Enabled:  true,
		Interval: 15 * time.Minute,
	}
}

// Validate validates the configuration
func (c *SyncSchedulerConfig) Validate() error {
	if c.Interval <= 0 {
		return ErrInvalidConfig
	}
	for _, m := range c.Modules {
		if !m.IsValid() {
			return ErrInvalidConfig
		}
	}
	if c.TenantID == uuid.Nil {
		return ErrInvalidConfig
	}
	return nil
}

// modules returns the configured modules, defaulting to all of them
func (c *SyncSchedulerConfig) modules() []sync.Module {
	if len(c.Modules) > 0 {
		return c.Modules
	}
	return sync.AllModules()
}

// SyncScheduler triggers sync runs for the configured modules at a fixed
// interval. Single-flight is enforced downstream, so a tick that overlaps
// a manual run simply skips the busy module.
type SyncScheduler struct {
	trigger   SyncTrigger
	config    SyncSchedulerConfig
	logger    *zap.Logger
	cancel    context.CancelFunc
	wg        stdsync.WaitGroup
	mu        stdsync.Mutex
	isRunning bool
}

// NewSyncScheduler creates a new sync scheduler
func NewSyncScheduler(trigger SyncTrigger, config SyncSchedulerConfig, logger *zap.Logger) (*SyncScheduler, error) {
	if config.Enabled {
		if err := config.Validate(); err != nil {
			return nil, err
		}
	}
	return &SyncScheduler{
		trigger: trigger,
		config:  config,
		logger:  logger,
	}, nil
}

// Start starts the scheduler loop
func (s *SyncScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	if !s.config.Enabled {
		s.mu.Unlock()
		s.logger.Info("Sync scheduler is disabled")
		return nil
	}
	s.isRunning = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go s.run(ctx)

	s.logger.Info("Sync scheduler started",
		zap.Duration("interval", s.config.Interval),
		zap.String("tenant_id", s.config.TenantID.String()),
		zap.Int("modules", len(s.config.modules())),
	)
	return nil
}

// Stop gracefully stops the scheduler
func (s *SyncScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Sync scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Sync scheduler stop timed out")
		return ctx.Err()
	}
}

// IsRunning returns whether the scheduler is running
func (s *SyncScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

// run ticks at the configured interval until the context is cancelled
func (s *SyncScheduler) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("Sync scheduler loop stopping")
			return
		case <-ticker.C:
			s.executeTick(ctx)
		}
	}
}

// executeTick triggers every configured module once, in order
func (s *SyncScheduler) executeTick(ctx context.Context) {
	startTime := time.Now()
	s.logger.Info("Scheduled sync tick started",
		zap.String("tenant_id", s.config.TenantID.String()),
	)

	for _, module := range s.config.modules() {
		if ctx.Err() != nil {
			return
		}

		report, err := s.trigger.TriggerSync(ctx, s.config.TenantID, module)
		if err != nil {
			if errors.Is(err, sync.ErrBusy) {
				s.logger.Info("Scheduled sync skipped busy module",
					zap.String("module", module.String()),
				)
				continue
			}
			s.logger.Error("Scheduled sync failed",
				zap.String("module", module.String()),
				zap.Error(err),
			)
			continue
		}

		s.logger.Info("Scheduled sync completed",
			zap.String("module", module.String()),
			zap.String("status", report.Status),
			zap.Int("processed", report.RecordsProcessed),
			zap.Int("failed", report.RecordsFailed),
		)
	}

	s.logger.Info("Scheduled sync tick finished",
		zap.Duration("duration", time.Since(startTime)),
	)
}
