package rpcgateway

import (
	"container/list"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rail-service/deposit_monitor/pkg/logger"
	"github.com/rail-service/deposit_monitor/pkg/metrics"
)

var (
	ErrGatewayClosed = errors.New("rpc gateway is shut down")
	ErrTaskPanicked  = errors.New("rpc task panicked")
)

// Task is one outbound chain query
type Task func(ctx context.Context) (interface{}, error)

// Config holds gateway configuration
type Config struct {
	MaxRequestsPerWindow int
	Window               time.Duration
}

// DefaultConfig returns 100 calls per rolling second
func DefaultConfig() Config {
	return Config{
		MaxRequestsPerWindow: 100,
		Window:               time.Second,
	}
}

type result struct {
	value interface{}
	err   error
}

type request struct {
	ctx  context.Context
	task Task
	done chan result
}

// Gateway is the single rate-limited egress point for chain queries. Tasks
// are started in FIFO order and no more than MaxRequestsPerWindow tasks start
// inside one window, however many callers are waiting.
type Gateway struct {
	cfg     Config
	metrics *metrics.Metrics
	logger  *logger.Logger

	mu          sync.Mutex
	queue       *list.List
	running     bool
	closed      bool
	windowStart time.Time
	windowCalls int
	processed   uint64
	errored     uint64

	stopCh   chan struct{}
	inflight sync.WaitGroup
}

// New creates a gateway. The worker loop starts lazily on the first Submit.
func New(cfg Config, m *metrics.Metrics, log *logger.Logger) *Gateway {
	def := DefaultConfig()
	if cfg.MaxRequestsPerWindow <= 0 {
		cfg.MaxRequestsPerWindow = def.MaxRequestsPerWindow
	}
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	if m == nil {
		m = metrics.NewNop()
	}

	return &Gateway{
		cfg:     cfg,
		metrics: m,
		logger:  log,
		queue:   list.New(),
		stopCh:  make(chan struct{}),
	}
}

// Submit queues task and blocks until it settles or ctx is done. A task whose
// context is already done when it reaches the head of the queue is rejected
// with the context error instead of being executed.
func (g *Gateway) Submit(ctx context.Context, task Task) (interface{}, error) {
	req := &request{ctx: ctx, task: task, done: make(chan result, 1)}
	if err := g.enqueue(req); err != nil {
		return nil, err
	}

	select {
	case res := <-req.done:
		return res.value, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Do submits a typed task through the gateway
func Do[T any](ctx context.Context, g *Gateway, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	v, err := g.Submit(ctx, func(ctx context.Context) (interface{}, error) {
		out, err := fn(ctx)
		return out, err
	})
	if err != nil {
		return zero, err
	}

	out, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("unexpected gateway result type %T", v)
	}
	return out, nil
}

func (g *Gateway) enqueue(req *request) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return ErrGatewayClosed
	}

	g.queue.PushBack(req)
	g.metrics.GatewayQueueDepth.Set(float64(g.queue.Len()))

	if !g.running {
		g.running = true
		go g.run()
	}
	return nil
}

func (g *Gateway) run() {
	for {
		g.mu.Lock()
		if g.queue.Len() == 0 {
			g.running = false
			g.mu.Unlock()
			return
		}

		now := time.Now()
		if now.Sub(g.windowStart) >= g.cfg.Window {
			g.windowStart = now
			g.windowCalls = 0
		}

		if g.windowCalls >= g.cfg.MaxRequestsPerWindow {
			wait := g.cfg.Window - now.Sub(g.windowStart)
			g.mu.Unlock()

			g.metrics.GatewayThrottleWaits.Inc()
			timer := time.NewTimer(wait)
			select {
			case <-timer.C:
			case <-g.stopCh:
				timer.Stop()
			}
			continue
		}

		req := g.queue.Remove(g.queue.Front()).(*request)
		g.metrics.GatewayQueueDepth.Set(float64(g.queue.Len()))

		if err := req.ctx.Err(); err != nil {
			g.mu.Unlock()
			g.settle(req, result{err: err})
			continue
		}

		g.windowCalls++
		g.metrics.GatewayWindowCalls.Set(float64(g.windowCalls))
		g.inflight.Add(1)
		g.mu.Unlock()

		go g.execute(req)
	}
}

func (g *Gateway) execute(req *request) {
	defer g.inflight.Done()

	res := func() (res result) {
		defer func() {
			if r := recover(); r != nil {
				res = result{err: fmt.Errorf("%w: %v", ErrTaskPanicked, r)}
			}
		}()
		v, err := req.task(req.ctx)
		return result{value: v, err: err}
	}()

	g.settle(req, res)
}

func (g *Gateway) settle(req *request, res result) {
	g.mu.Lock()
	g.processed++
	if res.err != nil {
		g.errored++
	}
	g.mu.Unlock()

	if res.err != nil {
		g.metrics.GatewayTasks.WithLabelValues("error").Inc()
		if errors.Is(res.err, ErrTaskPanicked) && g.logger != nil {
			g.logger.Error("RPC task panicked", "error", res.err)
		}
	} else {
		g.metrics.GatewayTasks.WithLabelValues("ok").Inc()
	}

	req.done <- res
}

// Shutdown rejects queued tasks with ErrGatewayClosed and waits for running
// tasks to finish
func (g *Gateway) Shutdown(timeout time.Duration) error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return nil
	}
	g.closed = true
	close(g.stopCh)

	pending := make([]*request, 0, g.queue.Len())
	for e := g.queue.Front(); e != nil; e = e.Next() {
		pending = append(pending, e.Value.(*request))
	}
	g.queue.Init()
	g.metrics.GatewayQueueDepth.Set(0)
	g.mu.Unlock()

	for _, req := range pending {
		g.settle(req, result{err: ErrGatewayClosed})
	}

	done := make(chan struct{})
	go func() {
		g.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		if g.logger != nil {
			g.logger.Info("RPC gateway stopped", "rejected", len(pending))
		}
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("timed out waiting for in-flight rpc tasks")
	}
}
