package chat

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/affanraza84/Chatting-App/logger"
	"github.com/affanraza84/Chatting-App/tools/safe"
	"go.uber.org/zap"
)

type BroadcasterConf struct {
	PushTimeout time.Duration // per handle bound
	Coalesce    time.Duration // wait after a signal so a burst collapses into one round
}

// Broadcaster sends the full online set to every open connection whenever
// the registry changes. Every round snapshots the registry when it starts.
// A signal that arrives while a round is in flight cancels that round and
// starts a fresh one, so a stalled client never holds back newer snapshots
// and all clients converge on the final set. Rounds never overlap.
type Broadcaster struct {
	reg     *Registry
	conns   *ConnManager
	conf    BroadcasterConf
	metrics *Metrics

	signal   chan struct{}
	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
	running  atomic.Bool
}

func NewBroadcaster(reg *Registry, conns *ConnManager, conf BroadcasterConf, metrics *Metrics) *Broadcaster {
	if conf.PushTimeout <= 0 {
		conf.PushTimeout = 5 * time.Second
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Broadcaster{
		reg:     reg,
		conns:   conns,
		conf:    conf,
		metrics: metrics,
		signal:  make(chan struct{}, 1),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// Notify requests a broadcast. It never blocks.
func (b *Broadcaster) Notify() {
	select {
	case b.signal <- struct{}{}:
	default:
	}
}

// Run processes signals until ctx is done or Stop is called. The round in
// flight at shutdown completes and a pending signal still gets its round.
func (b *Broadcaster) Run(ctx context.Context) {
	if !b.running.CompareAndSwap(false, true) {
		return
	}
	defer close(b.doneCh)

	base := context.WithoutCancel(ctx)
	var (
		round  chan struct{} // nil while idle
		cancel context.CancelFunc
	)
	finish := func() {
		if round != nil {
			<-round
			cancel()
			round = nil
		}
	}
	for {
		select {
		case <-b.signal:
			if round != nil {
				cancel()
				finish()
			}
			b.coalesce(ctx)
			rctx, c := context.WithCancel(base)
			done := make(chan struct{})
			round, cancel = done, c
			safe.Go("presence.round", func() {
				defer close(done)
				b.Broadcast(rctx)
			})
		case <-round:
			cancel()
			round = nil
		case <-ctx.Done():
			finish()
			b.drain()
			return
		case <-b.stopCh:
			finish()
			b.drain()
			return
		}
	}
}

func (b *Broadcaster) coalesce(ctx context.Context) {
	if b.conf.Coalesce <= 0 {
		return
	}
	select {
	case <-time.After(b.conf.Coalesce):
	case <-b.stopCh:
	case <-ctx.Done():
	}
}

func (b *Broadcaster) drain() {
	select {
	case <-b.signal:
		b.Broadcast(context.Background())
	default:
	}
}

// Stop ends Run and waits for it to return.
func (b *Broadcaster) Stop() {
	b.stopOnce.Do(func() { close(b.stopCh) })
	if b.running.Load() {
		<-b.doneCh
	}
}

// BroadcastResult counts one round.
type BroadcastResult struct {
	Users   []string
	Targets int
	Failed  int
}

// Broadcast snapshots the registry and pushes it to every open connection,
// one goroutine per connection. A failed push never stops the others.
// Cancelling ctx abandons the pushes still pending; those are not failures.
func (b *Broadcaster) Broadcast(ctx context.Context) BroadcastResult {
	users := b.reg.SnapshotKeys()
	targets := b.conns.List()
	ev := OnlineUsersEvent(users)

	b.metrics.Broadcasts.Inc()
	b.metrics.OnlineUsers.Set(float64(len(users)))

	failed := b.fanout(ctx, targets, ev)
	if ctx.Err() != nil {
		logger.Debug("[Presence] broadcast superseded", zap.Int("targets", len(targets)), zap.Int("online", len(users)))
	} else if failed > 0 {
		logger.Warn("[Presence] broadcast partially failed",
			zap.Int("targets", len(targets)), zap.Int("failed", failed), zap.Int("online", len(users)))
	} else {
		logger.Debug("[Presence] broadcast", zap.Int("targets", len(targets)), zap.Strings("online", users))
	}
	return BroadcastResult{Users: users, Targets: len(targets), Failed: failed}
}

// Unicast sends the current snapshot to h only.
func (b *Broadcaster) Unicast(ctx context.Context, h Handle) error {
	pctx, cancel := context.WithTimeout(ctx, b.conf.PushTimeout)
	defer cancel()
	err := h.Push(pctx, OnlineUsersEvent(b.reg.SnapshotKeys()))
	if err != nil {
		b.metrics.PushFailures.WithLabelValues("unicast").Inc()
	}
	return err
}

func (b *Broadcaster) fanout(ctx context.Context, targets []Handle, ev Event) int {
	var (
		wg     sync.WaitGroup
		failed atomic.Int64
	)
	for _, h := range targets {
		wg.Add(1)
		go func(h Handle) {
			defer wg.Done()
			ok := safe.Run("presence.push", func() {
				pctx, cancel := context.WithTimeout(ctx, b.conf.PushTimeout)
				defer cancel()
				if err := h.Push(pctx, ev); err != nil {
					if ctx.Err() != nil {
						return
					}
					failed.Add(1)
					b.metrics.PushFailures.WithLabelValues("presence").Inc()
					logger.Debug("[Presence] push failed",
						zap.String("conn", h.ID()), zap.String("user", h.UserID()), zap.Error(err))
				}
			})
			if !ok {
				failed.Add(1)
			}
		}(h)
	}
	wg.Wait()
	return int(failed.Load())
}
