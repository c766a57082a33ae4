package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/taha00000/book-for-me/internal/channel"
	"github.com/taha00000/book-for-me/pkg/logging"
)

// ErrDispatcherClosed indicates the dispatcher is no longer accepting work.
var ErrDispatcherClosed = errors.New("dispatch: dispatcher closed")

// TurnProcessor is the downstream turn handler the workers invoke.
type TurnProcessor interface {
	HandleTurn(ctx context.Context, userPhone, text string, now time.Time) (string, error)
}

// ReplySender delivers a reply out of band when no HTTP caller is waiting
// for it, which is how every 202-acked webhook gets its answer.
type ReplySender interface {
	SendText(ctx context.Context, to, text string) error
}

const (
	defaultWorkers        = 2
	defaultReceiveWait    = 2  // seconds
	defaultReceiveMax     = 5  // messages
	maxReceiveWaitSeconds = 20 // SQS limit
	maxReceiveBatch       = 10
)

type dispatcherConfig struct {
	workers          int
	receiveWaitSecs  int
	receiveBatchSize int
	sender           ReplySender
}

// Option configures the dispatcher.
type Option func(*dispatcherConfig)

// WithWorkerCount overrides the number of queue polling goroutines.
func WithWorkerCount(workers int) Option {
	return func(cfg *dispatcherConfig) {
		if workers > 0 {
			cfg.workers = workers
		}
	}
}

// WithReceiveWaitSeconds sets the long-poll wait time for Receive calls.
func WithReceiveWaitSeconds(seconds int) Option {
	return func(cfg *dispatcherConfig) {
		if seconds < 0 {
			return
		}
		if seconds > maxReceiveWaitSeconds {
			seconds = maxReceiveWaitSeconds
		}
		cfg.receiveWaitSecs = seconds
	}
}

// WithReceiveBatchSize overrides how many messages each poll should return.
func WithReceiveBatchSize(size int) Option {
	return func(cfg *dispatcherConfig) {
		if size <= 0 {
			return
		}
		if size > maxReceiveBatch {
			size = maxReceiveBatch
		}
		cfg.receiveBatchSize = size
	}
}

// WithReplySender routes replies from fire-and-forget turns to an outbound
// chat client instead of dropping them.
func WithReplySender(sender ReplySender) Option {
	return func(cfg *dispatcherConfig) {
		cfg.sender = sender
	}
}

type dispatchResult struct {
	reply string
	err   error
}

// Dispatcher routes conversational turns through a queue before invoking
// the downstream processor. Development points it at the in-memory queue,
// production at SQS, without touching the HTTP handlers. It serves both
// webhook modes: HandleTurn enqueues and waits for the reply, Enqueue is
// fire-and-forget for the 202 path.
type Dispatcher struct {
	processor TurnProcessor
	queue     queueClient
	logger    *logging.Logger

	cfg dispatcherConfig

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	pending sync.Map // payload ID -> chan dispatchResult
}

// NewDispatcher wires a queue-backed dispatcher around the supplied
// processor and starts its workers.
func NewDispatcher(processor TurnProcessor, queue queueClient, logger *logging.Logger, opts ...Option) *Dispatcher {
	if processor == nil {
		panic("dispatch: processor cannot be nil")
	}
	if queue == nil {
		panic("dispatch: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}

	cfg := dispatcherConfig{
		workers:          defaultWorkers,
		receiveWaitSecs:  defaultReceiveWait,
		receiveBatchSize: defaultReceiveMax,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		processor: processor,
		queue:     queue,
		logger:    logger.WithComponent("dispatch"),
		cfg:       cfg,
		ctx:       ctx,
		cancel:    cancel,
	}
	for i := 0; i < cfg.workers; i++ {
		d.wg.Add(1)
		go d.runWorker(i + 1)
	}
	return d
}

// HandleTurn enqueues the turn and blocks until a worker has processed it.
func (d *Dispatcher) HandleTurn(ctx context.Context, userPhone, text string, now time.Time) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	jobID := uuid.NewString()
	body, err := json.Marshal(turnPayload{
		ID:         jobID,
		Phone:      userPhone,
		Text:       text,
		ReceivedAt: now.UnixMilli(),
	})
	if err != nil {
		return "", fmt.Errorf("dispatch: failed to encode payload: %w", err)
	}

	resultCh := make(chan dispatchResult, 1)
	d.pending.Store(jobID, resultCh)
	defer d.pending.Delete(jobID)

	if err := d.queue.Send(ctx, string(body)); err != nil {
		return "", fmt.Errorf("dispatch: failed to enqueue turn: %w", err)
	}

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-resultCh:
		return res.reply, res.err
	}
}

// Enqueue accepts a webhook message for background processing. Nobody waits
// for the reply; the processor's side effects are the outcome.
func (d *Dispatcher) Enqueue(ctx context.Context, msg channel.InboundMessage) error {
	body, err := json.Marshal(turnPayload{
		Phone:      msg.From,
		Text:       msg.Text,
		ReceivedAt: msg.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("dispatch: failed to encode payload: %w", err)
	}
	if err := d.queue.Send(ctx, string(body)); err != nil {
		return fmt.Errorf("dispatch: failed to enqueue turn: %w", err)
	}
	return nil
}

// Shutdown stops worker goroutines and notifies any pending callers.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.cancel()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
	}

	d.pending.Range(func(key, value any) bool {
		if ch, ok := value.(chan dispatchResult); ok {
			select {
			case ch <- dispatchResult{err: ErrDispatcherClosed}:
			default:
			}
		}
		d.pending.Delete(key)
		return true
	})
	return nil
}

func (d *Dispatcher) runWorker(workerID int) {
	defer d.wg.Done()
	d.logger.Debug("dispatch worker started", "worker_id", workerID)

	backoff := time.Second

	for {
		select {
		case <-d.ctx.Done():
			d.logger.Debug("dispatch worker stopping", "worker_id", workerID)
			return
		default:
		}

		messages, err := d.queue.Receive(d.ctx, d.cfg.receiveBatchSize, d.cfg.receiveWaitSecs)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			d.logger.Error("failed to receive turns", "error", err, "worker_id", workerID)
			time.Sleep(backoff)
			if backoff < 5*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		for _, msg := range messages {
			d.handleQueueMessage(msg)
		}
	}
}

func (d *Dispatcher) handleQueueMessage(msg queueMessage) {
	var payload turnPayload
	if err := json.Unmarshal([]byte(msg.Body), &payload); err != nil {
		d.logger.Error("failed to decode turn job", "error", err)
		d.deleteMessage(msg.ReceiptHandle)
		return
	}

	now := time.Now()
	if payload.ReceivedAt > 0 {
		now = time.UnixMilli(payload.ReceivedAt)
	}
	reply, err := d.processor.HandleTurn(d.ctx, payload.Phone, payload.Text, now)

	d.deleteMessage(msg.ReceiptHandle)
	if payload.ID == "" {
		d.sendReply(payload.Phone, reply, err)
		return
	}
	d.deliverResult(payload.ID, reply, err)
}

// sendReply pushes a fire-and-forget turn's reply out over the chat
// platform. Without a sender the reply has nowhere to go and is logged.
func (d *Dispatcher) sendReply(phone, reply string, err error) {
	if err != nil {
		d.logger.Error("background turn failed", "phone", phone, "error", err)
		return
	}
	if reply == "" {
		return
	}
	if d.cfg.sender == nil {
		d.logger.Warn("no reply sender configured, dropping background reply", "phone", phone)
		return
	}
	sendCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if sendErr := d.cfg.sender.SendText(sendCtx, phone, reply); sendErr != nil {
		d.logger.Error("failed to send reply", "phone", phone, "error", sendErr)
	}
}

func (d *Dispatcher) deleteMessage(receiptHandle string) {
	deleteCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.queue.Delete(deleteCtx, receiptHandle); err != nil {
		d.logger.Error("failed to delete turn job", "error", err)
	}
}

func (d *Dispatcher) deliverResult(jobID, reply string, err error) {
	value, ok := d.pending.Load(jobID)
	if !ok {
		d.logger.Debug("no waiting caller for turn job", "job_id", jobID)
		return
	}
	if ch, ok := value.(chan dispatchResult); ok {
		select {
		case ch <- dispatchResult{reply: reply, err: err}:
		default:
		}
	}
}
