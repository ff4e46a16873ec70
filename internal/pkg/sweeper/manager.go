package sweeper

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/evpago/evpago/internal/pkg/env"
)

// Runner is the sweep operation executed on each tick.
type Runner interface {
	RunExpirationSweep(ctx context.Context) (int, error)
}

// Manager runs the order expiration sweep on a fixed schedule. A failing run
// is logged and does not stop the schedule.
type Manager struct {
	runner   Runner
	interval time.Duration
	ticker   *time.Ticker
	stopCh   chan struct{}
	wg       sync.WaitGroup
	mu       sync.Mutex
	running  bool
}

var (
	globalManager *Manager
	managerOnce   sync.Once
)

// GetManager returns the global sweeper manager (singleton). The runner is
// bound on the first call.
func GetManager(runner Runner) *Manager {
	managerOnce.Do(func() {
		globalManager = &Manager{
			runner:   runner,
			interval: sweepInterval(),
			stopCh:   make(chan struct{}),
		}
	})
	return globalManager
}

// NewManager creates an unshared manager, used in tests.
func NewManager(runner Runner, interval time.Duration) *Manager {
	return &Manager{
		runner:   runner,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

func sweepInterval() time.Duration {
	minutes := env.GetEnvInt("ORDER_SWEEP_INTERVAL_MINUTES", 5)
	if minutes <= 0 {
		minutes = 5
	}
	return time.Duration(minutes) * time.Minute
}

// Start launches the sweep worker. Nothing is scheduled in the test
// environment.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}
	if env.IsTest() {
		log.Info("[Sweeper] Skipping expiration sweeps in test environment")
		return
	}

	// Recreate stop channel for each start cycle so the manager can be
	// restarted safely.
	m.stopCh = make(chan struct{})
	m.running = true

	m.ticker = time.NewTicker(m.interval)
	m.wg.Add(1)
	go m.worker()

	log.Infof("[Sweeper] Started (interval: %s)", m.interval)
}

// Stop halts the schedule and waits for an in-flight sweep to finish.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	if m.ticker != nil {
		m.ticker.Stop()
	}
	close(m.stopCh)
	m.running = false

	m.wg.Wait()
	log.Info("[Sweeper] Stopped")
}

func (m *Manager) worker() {
	defer m.wg.Done()

	for {
		select {
		case <-m.stopCh:
			log.Info("[Sweeper] Worker stopping")
			return
		case <-m.ticker.C:
			m.runOnce()
		}
	}
}

func (m *Manager) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	expired, err := m.runner.RunExpirationSweep(ctx)
	if err != nil {
		log.Errorf("[Sweeper] Expiration sweep failed: %v", err)
		return
	}
	if expired > 0 {
		log.Infof("[Sweeper] Expired %d orders", expired)
	}
}
