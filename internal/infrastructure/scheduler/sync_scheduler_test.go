package scheduler

import (
	"context"
	stdsync "sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appsync "github.com/dentalab/erpsync/internal/application/sync"
	"github.com/dentalab/erpsync/internal/domain/sync"
)

// stubTrigger records triggered modules and signals each call
type stubTrigger struct {
	mu      stdsync.Mutex
	modules []sync.Module
	errs    map[sync.Module]error
	calls   chan sync.Module
}

func newStubTrigger() *stubTrigger {
	return &stubTrigger{
		errs:  make(map[sync.Module]error),
		calls: make(chan sync.Module, 64),
	}
}

func (s *stubTrigger) TriggerSync(ctx context.Context, tenantID uuid.UUID, module sync.Module) (*appsync.RunReport, error) {
	s.mu.Lock()
	s.modules = append(s.modules, module)
	s.mu.Unlock()
	s.calls <- module

	if err := s.errs[module]; err != nil {
		return nil, err
	}
	return &appsync.RunReport{Module: module.String(), Status: sync.RunStatusSuccess.String()}, nil
}

func (s *stubTrigger) triggered() []sync.Module {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]sync.Module, len(s.modules))
	copy(out, s.modules)
	return out
}

func waitForCalls(t *testing.T, trigger *stubTrigger, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-trigger.calls:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for trigger call %d of %d", i+1, n)
		}
	}
}

func testConfig(modules ...sync.Module) SyncSchedulerConfig {
	return SyncSchedulerConfig{
		Enabled:  true,
		Interval: 10 * time.Millisecond,
		Modules:  modules,
		TenantID: uuid.New(),
	}
}

func TestSyncSchedulerConfig_Validate(t *testing.T) {
	t.Run("defaults are valid once a tenant is set", func(t *testing.T) {
		cfg := DefaultSyncSchedulerConfig()
		cfg.TenantID = uuid.New()
		assert.NoError(t, cfg.Validate())
	})

	t.Run("rejects a non-positive interval", func(t *testing.T) {
		cfg := testConfig()
		cfg.Interval = 0
		assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
	})

	t.Run("rejects an unknown module", func(t *testing.T) {
		cfg := testConfig(sync.Module("ledger"))
		assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
	})

	t.Run("rejects a missing tenant", func(t *testing.T) {
		cfg := testConfig()
		cfg.TenantID = uuid.Nil
		assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
	})
}

func TestSyncScheduler(t *testing.T) {
	t.Run("triggers configured modules each tick", func(t *testing.T) {
		trigger := newStubTrigger()
		s, err := NewSyncScheduler(trigger, testConfig(sync.ModuleCustomers, sync.ModuleInvoices), zap.NewNop())
		require.NoError(t, err)

		require.NoError(t, s.Start(context.Background()))
		defer s.Stop(context.Background())

		waitForCalls(t, trigger, 4)
		modules := trigger.triggered()
		assert.Equal(t, sync.ModuleCustomers, modules[0])
		assert.Equal(t, sync.ModuleInvoices, modules[1])
		assert.Equal(t, sync.ModuleCustomers, modules[2])
	})

	t.Run("empty module list covers all modules in order", func(t *testing.T) {
		trigger := newStubTrigger()
		s, err := NewSyncScheduler(trigger, testConfig(), zap.NewNop())
		require.NoError(t, err)

		require.NoError(t, s.Start(context.Background()))
		defer s.Stop(context.Background())

		waitForCalls(t, trigger, len(sync.AllModules()))
		assert.Equal(t, sync.AllModules(), trigger.triggered()[:len(sync.AllModules())])
	})

	t.Run("a busy module does not stop the tick", func(t *testing.T) {
		trigger := newStubTrigger()
		trigger.errs[sync.ModuleCustomers] = sync.ErrBusy
		s, err := NewSyncScheduler(trigger, testConfig(sync.ModuleCustomers, sync.ModuleStaff), zap.NewNop())
		require.NoError(t, err)

		require.NoError(t, s.Start(context.Background()))
		defer s.Stop(context.Background())

		waitForCalls(t, trigger, 2)
		modules := trigger.triggered()
		assert.Equal(t, sync.ModuleStaff, modules[1])
	})

	t.Run("disabled scheduler never ticks", func(t *testing.T) {
		trigger := newStubTrigger()
		cfg := testConfig(sync.ModuleCustomers)
		cfg.Enabled = false
		s, err := NewSyncScheduler(trigger, cfg, zap.NewNop())
		require.NoError(t, err)

		require.NoError(t, s.Start(context.Background()))
		assert.False(t, s.IsRunning())

		time.Sleep(30 * time.Millisecond)
		assert.Empty(t, trigger.triggered())
	})

	t.Run("stop waits for the loop to exit", func(t *testing.T) {
		trigger := newStubTrigger()
		s, err := NewSyncScheduler(trigger, testConfig(sync.ModuleCustomers), zap.NewNop())
		require.NoError(t, err)

		require.NoError(t, s.Start(context.Background()))
		assert.True(t, s.IsRunning())

		require.NoError(t, s.Stop(context.Background()))
		assert.False(t, s.IsRunning())
	})

	t.Run("invalid config rejected at construction", func(t *testing.T) {
		cfg := testConfig()
		cfg.Interval = -time.Second
		_, err := NewSyncScheduler(newStubTrigger(), cfg, zap.NewNop())
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})
}
