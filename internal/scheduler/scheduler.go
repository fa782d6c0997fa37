// Package scheduler drives the periodic scans that advance contest and
// position state without a user request in flight: price polling,
// revaluation, stop-loss/take-profit, margin calls, pending limit orders,
// contest lifecycle transitions, and finalization (spec §5).
//
// Grounded on the teacher's risk/liquidation.go monitorLoop: one ticker per
// scan kind, each running in its own goroutine until Stop is signaled.
package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/epic1st/contestcore/internal/domain"
	"github.com/epic1st/contestcore/internal/lifecycle"
	"github.com/epic1st/contestcore/internal/orderengine"
	"github.com/epic1st/contestcore/internal/positionengine"
	"github.com/epic1st/contestcore/internal/store"
)

// maxConcurrentContestScans bounds how many contests a single tick fans
// out to at once, so a scan kind with many active contests doesn't open
// an unbounded number of simultaneous DB/oracle round trips.
const maxConcurrentContestScans = 8

// Config holds the tick interval for each scan kind and the per-tick
// deadline applied to every contest's slice of work.
type Config struct {
	PriceScanInterval       time.Duration
	RevaluationInterval     time.Duration
	ProtectiveOrderInterval time.Duration
	MarginCallInterval      time.Duration
	LimitOrderInterval      time.Duration
	LifecycleInterval       time.Duration
	FinalizationInterval    time.Duration

	// ScanTimeout bounds a single contest's worth of work within one
	// tick of any scan kind (spec §5 default: 3s).
	ScanTimeout time.Duration
}

// DefaultConfig mirrors the teacher's one-second liquidation monitor for
// the hot scans, spacing the cheaper lifecycle/finalization sweeps out
// further since they touch every upcoming/active contest, not one.
func DefaultConfig() Config {
	return Config{
		PriceScanInterval:       2 * time.Second,
		RevaluationInterval:     2 * time.Second,
		ProtectiveOrderInterval: time.Second,
		MarginCallInterval:      time.Second,
		LimitOrderInterval:      time.Second,
		LifecycleInterval:       10 * time.Second,
		FinalizationInterval:    15 * time.Second,
		ScanTimeout:             3 * time.Second,
	}
}

// Scheduler owns the ticker loops. It holds the concrete store and engine
// services whose scans it drives.
type Scheduler struct {
	cfg Config

	store     *store.Store
	positions *positionengine.Service
	orders    *orderengine.Service
	life      *lifecycle.Service

	// contestLocks serializes scans against the same contest across scan
	// kinds: a contest already mid-scan is skipped for the remainder of
	// that tick rather than made to wait (spec §5: "a timed-out scan for
	// contest C skips that tick").
	contestLocks sync.Map // contestID int64 -> *sync.Mutex

	stopCh chan struct{}
	wg     sync.WaitGroup
}

func New(cfg Config, s *store.Store, positions *positionengine.Service, orders *orderengine.Service, life *lifecycle.Service) *Scheduler {
	return &Scheduler{
		cfg:       cfg,
		store:     s,
		positions: positions,
		orders:    orders,
		life:      life,
		stopCh:    make(chan struct{}),
	}
}

// Start launches one goroutine per scan kind. Call Stop to shut them all
// down.
func (sch *Scheduler) Start() {
	sch.wg.Add(7)
	go sch.loop(sch.cfg.PriceScanInterval, sch.runPriceScan)
	go sch.loop(sch.cfg.RevaluationInterval, sch.runRevaluationScan)
	go sch.loop(sch.cfg.ProtectiveOrderInterval, sch.runProtectiveOrderScan)
	go sch.loop(sch.cfg.MarginCallInterval, sch.runMarginCallScan)
	go sch.loop(sch.cfg.LimitOrderInterval, sch.runLimitOrderScan)
	go sch.loop(sch.cfg.LifecycleInterval, sch.runLifecycleScan)
	go sch.loop(sch.cfg.FinalizationInterval, sch.runFinalizationScan)
	log.Println("[Scheduler] started")
}

// Stop signals every scan loop to exit and waits for them to drain.
func (sch *Scheduler) Stop() {
	close(sch.stopCh)
	sch.wg.Wait()
	log.Println("[Scheduler] stopped")
}

func (sch *Scheduler) loop(interval time.Duration, scan func(ctx context.Context)) {
	defer sch.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-sch.stopCh:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), sch.cfg.ScanTimeout)
			scan(ctx)
			cancel()
		}
	}
}

// withContestLock runs fn while holding contestID's lock, skipping the
// tick entirely if another scan kind is already working that contest.
func (sch *Scheduler) withContestLock(contestID int64, fn func()) {
	lockAny, _ := sch.contestLocks.LoadOrStore(contestID, &sync.Mutex{})
	lock := lockAny.(*sync.Mutex)
	if !lock.TryLock() {
		return
	}
	defer lock.Unlock()
	fn()
}

func (sch *Scheduler) activeContests(ctx context.Context) []*domain.Contest {
	contests, err := store.ListContestsByStatus(ctx, sch.store.Pool(), domain.ContestActive)
	if err != nil {
		log.Printf("[Scheduler] list active contests failed: %v", err)
		return nil
	}
	return contests
}

func (sch *Scheduler) runPriceScan(ctx context.Context) {
	// Price polling itself is the oracle's concern (CachedOracle refreshes
	// on read); this tick exists so a future push-based feed has a fixed
	// point to plug into without restructuring the other scans.
}

// fanOutContests runs work for every active contest concurrently, bounded
// by maxConcurrentContestScans, skipping any contest whose lock is already
// held by another scan kind's tick. Grounded on the teacher's single
// sequential monitorLoop (risk/liquidation.go), generalized here to
// bounded fan-out since one tick may need to touch many contests within
// its ScanTimeout deadline.
func (sch *Scheduler) fanOutContests(ctx context.Context, work func(ctx context.Context, c *domain.Contest) error, failMsg string) {
	contests := sch.activeContests(ctx)
	if len(contests) == 0 {
		return
	}

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(maxConcurrentContestScans)

	for _, c := range contests {
		c := c
		group.Go(func() error {
			sch.withContestLock(c.ID, func() {
				if err := work(gctx, c); err != nil {
					log.Printf("[Scheduler] "+failMsg+" for contest %d failed: %v", c.ID, err)
				}
			})
			return nil
		})
	}
	_ = group.Wait() // work() errors are logged inline; Wait only drains the group
}

func (sch *Scheduler) runRevaluationScan(ctx context.Context) {
	sch.fanOutContests(ctx, func(ctx context.Context, c *domain.Contest) error {
		return sch.positions.UpdateAllPositionsPnLForContest(ctx, c.ID)
	}, "revaluation scan")
}

func (sch *Scheduler) runProtectiveOrderScan(ctx context.Context) {
	sch.fanOutContests(ctx, func(ctx context.Context, c *domain.Contest) error {
		return sch.positions.CheckStopLossTakeProfit(ctx, c.ID)
	}, "stop-loss/take-profit scan")
}

func (sch *Scheduler) runMarginCallScan(ctx context.Context) {
	sch.fanOutContests(ctx, func(ctx context.Context, c *domain.Contest) error {
		return sch.positions.CheckMarginCalls(ctx, c.ID)
	}, "margin call scan")
}

func (sch *Scheduler) runLimitOrderScan(ctx context.Context) {
	sch.fanOutContests(ctx, func(ctx context.Context, c *domain.Contest) error {
		return sch.orders.RunLimitOrderScan(ctx, c.ID)
	}, "limit order scan")
}

// runLifecycleScan drives auto-start/auto-cancel and pending-challenge
// expiry; both operate on upcoming contests so they share a tick.
func (sch *Scheduler) runLifecycleScan(ctx context.Context) {
	if err := sch.life.RunAutoStartScan(ctx); err != nil {
		log.Printf("[Scheduler] auto-start scan failed: %v", err)
	}
	if err := sch.life.ExpirePendingChallenges(ctx); err != nil {
		log.Printf("[Scheduler] pending challenge expiry scan failed: %v", err)
	}
}

// runFinalizationScan closes out contests whose endTime has passed.
func (sch *Scheduler) runFinalizationScan(ctx context.Context) {
	for _, c := range sch.activeContests(ctx) {
		if time.Now().Before(c.EndTime) {
			continue
		}
		sch.withContestLock(c.ID, func() {
			var err error
			if c.Kind == domain.ContestChallenge {
				err = sch.life.FinalizeChallenge(ctx, c.ID)
			} else {
				err = sch.life.FinalizeCompetition(ctx, c.ID)
			}
			if err != nil {
				log.Printf("[Scheduler] finalization scan for contest %d failed: %v", c.ID, err)
			}
		})
	}
}
