package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/joelklabo/bangbot/internal/commands"
	"github.com/joelklabo/bangbot/internal/metrics"
	"github.com/joelklabo/bangbot/internal/store"
)

// Runner wires transports to the command dispatcher.
type Runner struct {
	transports   []Transport
	transportMap map[string]Transport
	tokenizer    *commands.Tokenizer
	logger       *slog.Logger

	mu         sync.RWMutex
	dispatcher *commands.Dispatcher

	allowedSenders map[string]struct{}
	limiter        *senderLimiter

	dedup       Deduper
	dedupWindow time.Duration

	auditStore AuditLogger

	replyTimeout  time.Duration
	sendAttempts  int
	failurePrefix string
	infoPrefix    string
	maxReplyChars int

	pending sync.WaitGroup
}

// AuditLogger records dispatch outcomes.
type AuditLogger interface {
	AppendAudit(e store.AuditEntry) error
}

// Deduper suppresses redelivered or repeated messages.
type Deduper interface {
	AlreadyProcessed(id string) (bool, error)
	RecentMessageSeen(sender, text string, window time.Duration) (bool, error)
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithAllowedSenders sets allowed sender ids; empty means allow all.
func WithAllowedSenders(ids []string) RunnerOption {
	set := make(map[string]struct{}, len(ids))
	for _, n := range ids {
		set[strings.ToLower(n)] = struct{}{}
	}
	return func(r *Runner) { r.allowedSenders = set }
}

// WithRateLimit caps commands per sender per minute; zero or negative disables it.
func WithRateLimit(perMinute, burst int) RunnerOption {
	return func(r *Runner) { r.limiter = newSenderLimiter(perMinute, burst) }
}

// WithDedup drops messages whose id was already processed and, when window
// is positive, identical text repeated by the same sender within window.
func WithDedup(d Deduper, window time.Duration) RunnerOption {
	return func(r *Runner) {
		r.dedup = d
		r.dedupWindow = window
	}
}

// WithAuditLogger wires an audit sink.
func WithAuditLogger(a AuditLogger) RunnerOption {
	return func(r *Runner) { r.auditStore = a }
}

// WithReplyTimeout bounds each outbound delivery, retries included.
func WithReplyTimeout(d time.Duration) RunnerOption {
	return func(r *Runner) { r.replyTimeout = d }
}

// WithDecorations sets the text prepended to failure and info replies.
func WithDecorations(failure, info string) RunnerOption {
	return func(r *Runner) {
		r.failurePrefix = failure
		r.infoPrefix = info
	}
}

// WithMaxReplyChars truncates longer replies; 0 disables truncation.
func WithMaxReplyChars(n int) RunnerOption {
	return func(r *Runner) { r.maxReplyChars = n }
}

// NewRunner constructs a Runner. If logger is nil, slog.Default is used.
func NewRunner(transports []Transport, tokenizer *commands.Tokenizer, dispatcher *commands.Dispatcher, logger *slog.Logger, opts ...RunnerOption) *Runner {
	if logger == nil {
		logger = slog.Default()
	}

	tmap := make(map[string]Transport, len(transports))
	for _, t := range transports {
		tmap[t.ID()] = t
	}

	r := &Runner{
		transports:    transports,
		transportMap:  tmap,
		tokenizer:     tokenizer,
		dispatcher:    dispatcher,
		logger:        logger,
		replyTimeout:  30 * time.Second,
		sendAttempts:  3,
		failurePrefix: ":exclamation: ",
		infoPrefix:    ":information_source: ",
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// AddCommand registers descriptors while the runner is live.
func (r *Runner) AddCommand(descs ...commands.Descriptor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dispatcher.Add(descs...)
}

// Descriptors returns the registered descriptors in registration order.
func (r *Runner) Descriptors() []commands.Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.dispatcher.Descriptors()
}

// Tokenizer returns the tokenizer used for inbound text.
func (r *Runner) Tokenizer() *commands.Tokenizer { return r.tokenizer }

// Start launches transports and processes inbound messages until ctx is done.
// It waits for in-flight replies before returning.
func (r *Runner) Start(ctx context.Context) error {
	inbound := make(chan InboundMessage, 128)
	var wg sync.WaitGroup
	errCh := make(chan error, len(r.transports))

	for _, t := range r.transports {
		wg.Add(1)
		go func(tr Transport) {
			defer wg.Done()
			if err := tr.Start(ctx, inbound); err != nil && !errors.Is(err, context.Canceled) {
				r.logger.Error("transport stopped", slog.String("transport", tr.ID()), slog.String("err", err.Error()))
				errCh <- fmt.Errorf("transport %s: %w", tr.ID(), err)
			}
		}(t)
	}

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case msg := <-inbound:
			r.HandleMessage(ctx, msg)
		}
	}

	wg.Wait()
	r.pending.Wait()

	select {
	case err := <-errCh:
		return err
	default:
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil
		}
		return ctx.Err()
	}
}

// HandleMessage tokenizes and dispatches one inbound message. Messages that
// are not commands, or are filtered by policy, yield no outcomes.
func (r *Runner) HandleMessage(parent context.Context, msg InboundMessage) []commands.Outcome {
	log := r.logger.With(
		slog.String("transport", msg.Transport),
		slog.String("sender", msg.Sender),
		slog.String("channel", msg.Channel),
	)
	metrics.IncInbound(msg.Transport)

	if len(r.allowedSenders) > 0 {
		if _, ok := r.allowedSenders[strings.ToLower(msg.Sender)]; !ok {
			log.Warn("sender not allowed")
			metrics.IncIgnored("sender")
			return nil
		}
	}

	text := strings.TrimSpace(msg.Text)
	if !strings.HasPrefix(text, r.tokenizer.Prefixes().Command) {
		metrics.IncIgnored("no_prefix")
		return nil
	}

	if r.isDuplicate(msg, text, log) {
		metrics.IncIgnored("duplicate")
		return nil
	}

	args, err := r.tokenizer.Parse(text)
	origin := commands.Origin{
		Transport: msg.Transport,
		Sender:    msg.Sender,
		Channel:   msg.Channel,
		MessageID: msg.MessageID,
		ThreadID:  msg.ThreadID,
		Meta:      msg.Meta,
	}
	if err != nil {
		metrics.IncIgnored("malformed")
		if errors.Is(err, commands.ErrDuplicateParam) {
			c := commands.NewContext(parent, nil, origin, r.replierFor(msg), r.tokenizer.Prefixes().Pair)
			c.Complain(fmt.Sprintf("Could not read that command: %s.", strings.TrimPrefix(err.Error(), commands.ErrMalformedInput.Error()+": ")))
		}
		log.Debug("malformed input", slog.String("err", err.Error()))
		return nil
	}
	log = log.With(slog.String("command", args.Identifier()))

	if !r.limiter.Allow(msg.Sender) {
		log.Warn("rate limited")
		metrics.IncIgnored("rate")
		return nil
	}

	c := commands.NewContext(parent, args, origin, r.replierFor(msg), r.tokenizer.Prefixes().Pair)

	start := time.Now()
	r.mu.RLock()
	outcomes := r.dispatcher.Dispatch(c)
	r.mu.RUnlock()
	elapsed := time.Since(start)
	metrics.ObserveDispatch(elapsed.Seconds())

	if len(outcomes) == 0 {
		log.Debug("no matching command")
		metrics.IncIgnored("unknown")
		return nil
	}
	for _, o := range outcomes {
		status := outcomeStatus(o)
		metrics.IncDispatch(o.Identifier, status)
		metrics.AddValidationFailures(o.Identifier, len(o.Failures))
		attrs := []any{slog.String("outcome", status), slog.Duration("ms", elapsed)}
		if o.Err != nil {
			attrs = append(attrs, slog.String("err", o.Err.Error()))
		}
		log.Info("command handled", attrs...)
		r.logAudit(msg, o.Identifier, status, elapsed)
	}
	return outcomes
}

func outcomeStatus(o commands.Outcome) string {
	switch {
	case o.Err != nil:
		return "error"
	case !o.Ran:
		return "rejected"
	default:
		return "ok"
	}
}

func (r *Runner) isDuplicate(msg InboundMessage, text string, log *slog.Logger) bool {
	if r.dedup == nil {
		return false
	}
	if msg.MessageID != "" {
		seen, err := r.dedup.AlreadyProcessed(msg.Transport + ":" + msg.MessageID)
		if err != nil {
			log.Warn("dedup check failed", slog.String("err", err.Error()))
		} else if seen {
			log.Debug("skipping already processed message", slog.String("id", msg.MessageID))
			return true
		}
	}
	if r.dedupWindow > 0 {
		seen, err := r.dedup.RecentMessageSeen(msg.Transport+":"+msg.Sender, text, r.dedupWindow)
		if err != nil {
			log.Warn("dedup check failed", slog.String("err", err.Error()))
		} else if seen {
			log.Debug("skipping repeated message")
			return true
		}
	}
	return false
}

func (r *Runner) sendWithRetry(ctx context.Context, tr Transport, msg OutboundMessage, log *slog.Logger) error {
	var sendErr error
	err := retry(ctx, r.sendAttempts, func() error {
		err := tr.Send(ctx, msg)
		if err != nil {
			sendErr = err
			log.Warn("send retry", slog.String("err", err.Error()))
		}
		return err
	})
	if err != nil && sendErr != nil {
		return sendErr
	}
	return err
}

func (r *Runner) logAudit(msg InboundMessage, identifier, outcome string, dur time.Duration) {
	if r.auditStore == nil {
		return
	}
	err := r.auditStore.AppendAudit(store.AuditEntry{
		Time:       time.Now().UTC(),
		Transport:  msg.Transport,
		Sender:     msg.Sender,
		Identifier: identifier,
		Outcome:    outcome,
		DurationMS: dur.Milliseconds(),
	})
	if err != nil {
		r.logger.Warn("audit append failed", slog.String("err", err.Error()))
	}
}
