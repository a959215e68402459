package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"nudge-planner/internal/metrics"
	"nudge-planner/internal/model"
)

// Strategy is one way of getting a message to somebody.
type Strategy struct {
	Name string
	Send func(ctx context.Context, p Platform) error
}

// Direct messages the user privately.
func Direct(telegramUserID int64, text string) Strategy {
	return Strategy{Name: "direct", Send: func(ctx context.Context, p Platform) error {
		return p.SendDirect(ctx, telegramUserID, text)
	}}
}

// Reply answers an existing message.
func Reply(ref model.MessageRef, text string) Strategy {
	return Strategy{Name: "reply", Send: func(ctx context.Context, p Platform) error {
		return p.ReplyTo(ctx, ref, text)
	}}
}

// Post writes a fresh message into a chat.
func Post(chatID int64, text string) Strategy {
	return Strategy{Name: "post", Send: func(ctx context.Context, p Platform) error {
		_, err := p.PostMessage(ctx, chatID, text)
		return err
	}}
}

type Options struct {
	// RatePerSecond caps outgoing platform calls. Zero disables the limiter.
	RatePerSecond float64
	// AttemptTimeout bounds a single platform call. Zero means no bound.
	AttemptTimeout time.Duration
}

// Dispatcher sends notifications and reports how each attempt ended.
type Dispatcher struct {
	platform Platform
	phrases  *Phrasebook
	limiter  *rate.Limiter
	timeout  time.Duration
	logger   *zap.Logger
}

func NewDispatcher(platform Platform, phrases *Phrasebook, opts Options, logger *zap.Logger) *Dispatcher {
	if phrases == nil {
		phrases = DefaultPhrasebook()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Dispatcher{
		platform: platform,
		phrases:  phrases,
		timeout:  opts.AttemptTimeout,
		logger:   logger,
	}
	if opts.RatePerSecond > 0 {
		burst := int(opts.RatePerSecond)
		if burst < 1 {
			burst = 1
		}
		d.limiter = rate.NewLimiter(rate.Limit(opts.RatePerSecond), burst)
	}
	return d
}

func (d *Dispatcher) Phrases() *Phrasebook {
	return d.phrases
}

// Escalate replies to the anchor message of a task. The conversation is resolved
// first so a deleted chat fails fast. Any error means the target was not reached.
func (d *Dispatcher) Escalate(ctx context.Context, target model.MessageRef, text string) error {
	err := d.attempt(ctx, func(ctx context.Context) error {
		if _, err := d.platform.ResolveConversation(ctx, target.ChatID); err != nil {
			return fmt.Errorf("resolve chat %d: %w", target.ChatID, err)
		}
		return nil
	})
	if err == nil {
		err = d.attempt(ctx, func(ctx context.Context) error {
			return d.platform.ReplyTo(ctx, target, text)
		})
	}
	metrics.RecordDelivery(string(KindEscalation), "reply", outcome(err))
	return err
}

// Deliver tries strategies in order until one succeeds and returns its name.
// Each strategy is tried once. When all fail the failures are logged and
// ErrExhausted is returned; callers treat that as a finished attempt.
// A throttled strategy stops the walk with ErrThrottled.
func (d *Dispatcher) Deliver(ctx context.Context, kind Kind, strategies ...Strategy) (string, error) {
	var errs []error
	for _, s := range strategies {
		err := d.attempt(ctx, func(ctx context.Context) error {
			return s.Send(ctx, d.platform)
		})
		metrics.RecordDelivery(string(kind), s.Name, outcome(err))
		if err == nil {
			return s.Name, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if errors.Is(err, ErrThrottled) {
			return "", err
		}
		d.logger.Debug("delivery strategy failed",
			zap.String("kind", string(kind)),
			zap.String("strategy", s.Name),
			zap.Error(err),
		)
		errs = append(errs, fmt.Errorf("%s: %w", s.Name, err))
	}
	d.logger.Warn("delivery exhausted",
		zap.String("kind", string(kind)),
		zap.Int("strategies", len(strategies)),
		zap.Error(errors.Join(errs...)),
	)
	return "", ErrExhausted
}

// Post publishes a new message and returns its reference.
func (d *Dispatcher) Post(ctx context.Context, chatID int64, text string) (model.MessageRef, error) {
	var ref model.MessageRef
	err := d.attempt(ctx, func(ctx context.Context) error {
		var err error
		ref, err = d.platform.PostMessage(ctx, chatID, text)
		return err
	})
	return ref, err
}

// Throttle takes one send from the shared budget. Callers that talk to the
// platform outside the dispatcher use it so every outgoing call is counted.
func (d *Dispatcher) Throttle(ctx context.Context) error {
	if d.limiter == nil {
		return nil
	}
	if err := d.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrThrottled, err)
	}
	return nil
}

func (d *Dispatcher) attempt(ctx context.Context, call func(ctx context.Context) error) error {
	if err := d.Throttle(ctx); err != nil {
		return err
	}
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	return call(ctx)
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrTargetNotFound):
		return "not_found"
	case errors.Is(err, ErrThrottled):
		return "throttled"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "error"
	}
}
