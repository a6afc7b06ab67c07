package notification

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/rail-service/deposit_monitor/internal/domain/entities"
	"github.com/rail-service/deposit_monitor/internal/domain/repositories"
	"github.com/rail-service/deposit_monitor/pkg/logger"
	"github.com/rail-service/deposit_monitor/pkg/metrics"
	"github.com/rail-service/deposit_monitor/pkg/retry"
	"github.com/rail-service/deposit_monitor/pkg/security"
)

var (
	ErrDispatcherClosed = errors.New("notification dispatcher is shut down")
	// ErrAlreadyQueued is returned by Enqueue when the deposit is already
	// queued or being delivered
	ErrAlreadyQueued = errors.New("deposit notification already pending")
)

// AdminNotifier sends a best-effort text message to operators
type AdminNotifier interface {
	Send(ctx context.Context, message string) error
}

// NopAdminNotifier discards admin alerts
type NopAdminNotifier struct{}

func (NopAdminNotifier) Send(context.Context, string) error { return nil }

// Config holds dispatcher configuration
type Config struct {
	Workers                int
	QueueSize              int
	MaxAttempts            int
	InitialBackoff         time.Duration
	MaxBackoff             time.Duration
	RequestTimeout         time.Duration
	MaxConsecutiveFailures int
	AdminTimeout           time.Duration
}

// DefaultConfig returns 3 attempts with 2s/4s backoff capped at 8s, a 5s
// request timeout and deregistration after 5 failed events
func DefaultConfig() Config {
	return Config{
		Workers:                4,
		QueueSize:              1000,
		MaxAttempts:            3,
		InitialBackoff:         2 * time.Second,
		MaxBackoff:             8 * time.Second,
		RequestTimeout:         5 * time.Second,
		MaxConsecutiveFailures: 5,
		AdminTimeout:           10 * time.Second,
	}
}

// Dispatcher delivers deposit events to every active webhook and to the
// admin channel. Events are queued on a bounded channel and processed by a
// fixed worker pool so that the ledger write path never waits on delivery.
type Dispatcher struct {
	webhooks repositories.WebhookRepository
	ledger   repositories.DepositLedger
	cipher   SecretCipher
	admin    AdminNotifier
	client   *resty.Client
	retrier  *retry.Retrier
	config   Config
	metrics  *metrics.Metrics
	logger   *logger.Logger
	now      func() time.Time

	mu      sync.RWMutex
	queue   chan *entities.DepositEvent
	started bool
	closed  bool
	wg      sync.WaitGroup

	// deposits queued or in delivery; one event per deposit at a time
	pendingMu sync.Mutex
	pending   map[uuid.UUID]struct{}
}

// NewDispatcher creates a dispatcher. Call Start to run its workers.
func NewDispatcher(
	webhooks repositories.WebhookRepository,
	ledger repositories.DepositLedger,
	cipher SecretCipher,
	admin AdminNotifier,
	m *metrics.Metrics,
	log *logger.Logger,
	config Config,
) *Dispatcher {
	def := DefaultConfig()
	if config.Workers <= 0 {
		config.Workers = def.Workers
	}
	if config.QueueSize <= 0 {
		config.QueueSize = def.QueueSize
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = def.MaxAttempts
	}
	if config.InitialBackoff <= 0 {
		config.InitialBackoff = def.InitialBackoff
	}
	if config.MaxBackoff <= 0 {
		config.MaxBackoff = def.MaxBackoff
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = def.RequestTimeout
	}
	if config.MaxConsecutiveFailures <= 0 {
		config.MaxConsecutiveFailures = def.MaxConsecutiveFailures
	}
	if config.AdminTimeout <= 0 {
		config.AdminTimeout = def.AdminTimeout
	}
	if admin == nil {
		admin = NopAdminNotifier{}
	}
	if m == nil {
		m = metrics.NewNop()
	}

	retrier := retry.NewRetrier(retry.Policy{
		MaxRetries:     config.MaxAttempts - 1,
		InitialBackoff: config.InitialBackoff,
		MaxBackoff:     config.MaxBackoff,
		Multiplier:     2,
	}, log.Zap())

	client := resty.New().
		SetTimeout(config.RequestTimeout).
		SetHeader("User-Agent", "deposit-monitor-webhooks/1.0")

	return &Dispatcher{
		webhooks: webhooks,
		ledger:   ledger,
		cipher:   cipher,
		admin:    admin,
		client:   client,
		retrier:  retrier,
		config:   config,
		metrics:  m,
		logger:   log,
		now:      time.Now,
		queue:    make(chan *entities.DepositEvent, config.QueueSize),
		pending:  make(map[uuid.UUID]struct{}),
	}
}

// Start launches the worker pool
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.closed {
		return
	}
	d.started = true

	for i := 0; i < d.config.Workers; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}
	d.logger.Info("Notification dispatcher started",
		"workers", d.config.Workers,
		"queue_size", d.config.QueueSize)
}

// Submit queues an event without blocking. It returns false when the queue
// is full or the dispatcher is closed; the deposit then stays unsent for the
// outbox sweeper. A deposit that is already pending is not queued again and
// reports true.
func (d *Dispatcher) Submit(event *entities.DepositEvent) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return false
	}
	if !d.claim(event.Deposit.ID) {
		d.logger.Debug("Deposit notification already pending", "deposit_id", event.Deposit.ID)
		return true
	}

	select {
	case d.queue <- event:
		d.metrics.DispatchQueueDepth.Set(float64(len(d.queue)))
		return true
	default:
		d.release(event.Deposit.ID)
		d.metrics.DispatchDropped.Inc()
		return false
	}
}

// Enqueue queues an event, waiting for space until ctx is done. It returns
// ErrAlreadyQueued when the deposit is already queued or being delivered.
func (d *Dispatcher) Enqueue(ctx context.Context, event *entities.DepositEvent) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrDispatcherClosed
	}
	if !d.claim(event.Deposit.ID) {
		return ErrAlreadyQueued
	}

	select {
	case d.queue <- event:
		d.metrics.DispatchQueueDepth.Set(float64(len(d.queue)))
		return nil
	case <-ctx.Done():
		d.release(event.Deposit.ID)
		return ctx.Err()
	}
}

func (d *Dispatcher) claim(id uuid.UUID) bool {
	d.pendingMu.Lock()
	defer d.pendingMu.Unlock()
	if _, ok := d.pending[id]; ok {
		return false
	}
	d.pending[id] = struct{}{}
	return true
}

func (d *Dispatcher) release(id uuid.UUID) {
	d.pendingMu.Lock()
	delete(d.pending, id)
	d.pendingMu.Unlock()
}

func (d *Dispatcher) worker(id int) {
	defer d.wg.Done()

	for event := range d.queue {
		d.metrics.DispatchQueueDepth.Set(float64(len(d.queue)))
		d.process(id, event)
	}
}

func (d *Dispatcher) process(workerID int, event *entities.DepositEvent) {
	defer d.release(event.Deposit.ID)
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("Notification worker recovered from panic",
				"worker", workerID,
				"deposit_id", event.Deposit.ID,
				"panic", r)
		}
	}()

	if err := d.Dispatch(context.Background(), event); err != nil {
		d.logger.Error("Deposit notification failed",
			"deposit_id", event.Deposit.ID,
			"error", err)
	}
}

// Dispatch sends the admin alert and delivers the event to every active
// webhook in parallel, then marks the deposit as notified. Per-webhook
// failures are accounted on the webhook and never returned.
func (d *Dispatcher) Dispatch(ctx context.Context, event *entities.DepositEvent) error {
	ctx, span := otel.Tracer("notification.dispatcher").Start(ctx, "Dispatch")
	defer span.End()
	span.SetAttributes(attribute.String("deposit_id", event.Deposit.ID.String()))

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		d.sendAdminAlert(ctx, event)
	}()

	hooks, err := d.webhooks.ListActive(ctx)
	if err != nil {
		wg.Wait()
		span.RecordError(err)
		return fmt.Errorf("failed to list active webhooks: %w", err)
	}

	for _, hook := range hooks {
		wg.Add(1)
		go func(hook *entities.Webhook) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					d.logger.Error("Webhook delivery panicked",
						"webhook_id", hook.ID, "deposit_id", event.Deposit.ID, "panic", r)
				}
			}()
			d.deliver(ctx, hook, event)
		}(hook)
	}
	wg.Wait()

	if err := d.ledger.MarkWebhookSent(ctx, event.Deposit.ID, d.now().UTC()); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to mark deposit notified: %w", err)
	}

	d.logger.Debug("Deposit notification complete",
		"deposit_id", event.Deposit.ID,
		"webhooks", len(hooks))
	return nil
}

func (d *Dispatcher) sendAdminAlert(ctx context.Context, event *entities.DepositEvent) {
	ctx, cancel := context.WithTimeout(ctx, d.config.AdminTimeout)
	defer cancel()

	if err := d.admin.Send(ctx, FormatDepositAlert(event)); err != nil {
		d.metrics.AdminAlerts.WithLabelValues("error").Inc()
		d.logger.Warn("Admin deposit alert failed",
			"deposit_id", event.Deposit.ID,
			"error", err)
		return
	}
	d.metrics.AdminAlerts.WithLabelValues("ok").Inc()
}

// deliver posts the signed payload with retries and updates the failure
// accounting of the webhook
func (d *Dispatcher) deliver(ctx context.Context, hook *entities.Webhook, event *entities.DepositEvent) {
	ctx, span := otel.Tracer("notification.dispatcher").Start(ctx, "DeliverWebhook")
	defer span.End()
	span.SetAttributes(attribute.String("webhook_id", hook.ID.String()))

	secret, err := d.cipher.DecryptString(hook.EncryptedSecret)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "secret decryption failed")
		d.metrics.WebhookDeliveries.WithLabelValues("secret_error").Inc()
		d.logger.Error("Failed to decrypt webhook secret",
			"webhook_id", hook.ID,
			"error", err)
		return
	}

	payload := BuildPayload(hook.ID, event, d.now())
	body, signature, err := SignPayload(payload, secret)
	if err != nil {
		span.RecordError(err)
		d.logger.Error("Failed to sign webhook payload", "webhook_id", hook.ID, "error", err)
		return
	}

	err = d.retrier.Do(ctx, func(ctx context.Context, attempt int) error {
		return d.post(ctx, hook, body, signature)
	})
	if err == nil {
		d.metrics.WebhookDeliveries.WithLabelValues("ok").Inc()
		if hook.ConsecutiveFailures > 0 {
			if err := d.webhooks.RecordSuccess(ctx, hook.ID); err != nil {
				d.logger.Warn("Failed to reset webhook failure count", "webhook_id", hook.ID, "error", err)
			}
		}
		return
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, "delivery failed")
	d.metrics.WebhookDeliveries.WithLabelValues("failed").Inc()
	d.recordFailure(ctx, hook, event, err)
}

func (d *Dispatcher) post(ctx context.Context, hook *entities.Webhook, body []byte, signature string) error {
	resp, err := d.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader(HeaderSignature, SignatureHeader(signature)).
		SetHeader(HeaderEvent, entities.WebhookEventDeposit).
		SetHeader(HeaderWebhookID, hook.ID.String()).
		SetBody(body).
		Post(hook.URL)
	if err != nil {
		return err
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("webhook endpoint returned status %d", resp.StatusCode())
	}
	return nil
}

func (d *Dispatcher) recordFailure(ctx context.Context, hook *entities.Webhook, event *entities.DepositEvent, cause error) {
	failures, err := d.webhooks.RecordFailure(ctx, hook.ID, d.now().UTC())
	if err != nil {
		d.logger.Error("Failed to record webhook failure",
			"webhook_id", hook.ID,
			"error", err)
		return
	}

	d.logger.Warn("Webhook delivery failed after retries",
		"webhook_id", hook.ID,
		"url", security.MaskURL(hook.URL),
		"deposit_id", event.Deposit.ID,
		"consecutive_failures", failures,
		"error", cause)

	if failures < d.config.MaxConsecutiveFailures {
		return
	}

	if err := d.webhooks.Delete(ctx, hook.ID); err != nil {
		d.logger.Error("Failed to deregister failing webhook",
			"webhook_id", hook.ID,
			"error", err)
		return
	}
	d.metrics.WebhooksDeregistered.Inc()
	d.logger.Warn("Webhook deregistered after repeated failures",
		"webhook_id", hook.ID,
		"url", security.MaskURL(hook.URL),
		"consecutive_failures", failures)
}

// Shutdown stops accepting events and waits for queued events to drain
func (d *Dispatcher) Shutdown(timeout time.Duration) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	started := d.started
	d.mu.Unlock()

	if !started {
		return nil
	}

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.logger.Info("Notification dispatcher stopped")
		return nil
	case <-time.After(timeout):
		d.logger.Warn("Notification dispatcher shutdown timed out", "timeout", timeout)
		return fmt.Errorf("timed out draining notification queue")
	}
}
