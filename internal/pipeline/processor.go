package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"

	telegramadapter "github.com/Desenvolvimento-de-Software/thecarbon-bot/internal/adapters/telegram"
	"github.com/Desenvolvimento-de-Software/thecarbon-bot/internal/codeblock"
	"github.com/Desenvolvimento-de-Software/thecarbon-bot/internal/render"
)

const (
	defaultMaxParallelSpans = 2
	defaultReplyTimeout     = 30 * time.Second
)

// Message is an inbound chat message reduced to what the pipeline reads.
type Message struct {
	ChatID    int64
	MessageID int64
	UserID    int64
	Text      string
	Entities  []codeblock.Entity
}

type Renderer interface {
	Render(ctx context.Context, req render.Request) render.Result
}

type Deliverer interface {
	Deliver(ctx context.Context, path string, chatID, replyTo int64) telegramadapter.Outcome
	Apologize(ctx context.Context, chatID, replyTo int64) error
}

type Options struct {
	Renderer         Renderer
	Deliverer        Deliverer
	Logger           *slog.Logger
	MaxParallelSpans int
	// ReplyTimeout bounds the upload or apology of one span. Replies are
	// not bound by the message deadline.
	ReplyTimeout time.Duration
}

// Summary counts what happened to the spans of one message.
type Summary struct {
	Spans     int
	Rendered  int
	Delivered int
}

type Processor struct {
	renderer     Renderer
	deliverer    Deliverer
	logger       *slog.Logger
	maxParallel  int
	replyTimeout time.Duration
}

func NewProcessor(opts Options) (*Processor, error) {
	if opts.Renderer == nil {
		return nil, fmt.Errorf("renderer is required")
	}
	if opts.Deliverer == nil {
		return nil, fmt.Errorf("deliverer is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxParallel := opts.MaxParallelSpans
	if maxParallel <= 0 {
		maxParallel = defaultMaxParallelSpans
	}
	replyTimeout := opts.ReplyTimeout
	if replyTimeout <= 0 {
		replyTimeout = defaultReplyTimeout
	}
	return &Processor{
		renderer:     opts.Renderer,
		deliverer:    opts.Deliverer,
		logger:       logger,
		maxParallel:  maxParallel,
		replyTimeout: replyTimeout,
	}, nil
}

// Handle renders and delivers every code span of msg. Spans run
// concurrently on a bounded pool and are independent of each other: a
// failing or slow span never blocks another span's delivery, only the
// return of Handle, which joins all of them.
func (p *Processor) Handle(ctx context.Context, msg Message) Summary {
	spans := codeblock.Extract(msg.Text, msg.Entities)
	sum := Summary{Spans: len(spans)}
	if len(spans) == 0 {
		return sum
	}

	var rendered, delivered atomic.Int32
	workers := pool.New().WithMaxGoroutines(p.maxParallel)
	for _, span := range spans {
		workers.Go(func() {
			r, d := p.handleSpan(ctx, msg, span)
			if r {
				rendered.Add(1)
			}
			if d {
				delivered.Add(1)
			}
		})
	}
	workers.Wait()

	sum.Rendered = int(rendered.Load())
	sum.Delivered = int(delivered.Load())
	return sum
}

func (p *Processor) handleSpan(ctx context.Context, msg Message, span codeblock.Span) (rendered, delivered bool) {
	renderID := uuid.NewString()
	logger := p.logger.With(
		"render_id", renderID,
		"chat_id", msg.ChatID,
		"message_id", msg.MessageID,
		"user_id", msg.UserID,
		"kind", string(span.Kind),
		"language", span.Language,
	)
	started := time.Now()

	var res render.Result
	if err := ctx.Err(); err != nil {
		res = render.Result{Err: fmt.Errorf("message deadline reached before render: %w", err)}
	} else {
		res = p.renderer.Render(ctx, render.Request{
			ID:       renderID,
			UserID:   msg.UserID,
			Language: span.Language,
			Code:     span.Code,
		})
	}

	// A span that used up the message deadline still gets its reply.
	replyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.replyTimeout)
	defer cancel()

	if !res.OK() {
		reason := "empty result"
		if res.Err != nil {
			reason = res.Err.Error()
		}
		logger.Warn("render_failed", "error", reason, "elapsed", time.Since(started).String())
		if err := p.deliverer.Apologize(replyCtx, msg.ChatID, msg.MessageID); err != nil {
			logger.Warn("render_failure_notice_error", "error", err.Error())
		}
		return false, false
	}

	out := p.deliverer.Deliver(replyCtx, res.Path, msg.ChatID, msg.MessageID)
	if !out.OK {
		return true, false
	}
	logger.Info("render_delivered", "elapsed", time.Since(started).String())
	return true, true
}
