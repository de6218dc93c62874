package llm

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/Skufu/medintake/internal/logger"
	"github.com/Skufu/medintake/internal/metrics"
)

// Limited throttles calls to next, records metrics and a span per call,
// and wraps every failure in ErrBackend.
type Limited struct {
	next    Client
	limiter *rate.Limiter
	tracer  trace.Tracer
}

// NewLimited allows rpm calls per minute with a burst of rpm/10 (at least 1).
func NewLimited(next Client, rpm int) *Limited {
	if rpm <= 0 {
		rpm = 60
	}
	burst := rpm / 10
	if burst < 1 {
		burst = 1
	}
	return &Limited{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(float64(rpm)/60.0), burst),
		tracer:  otel.Tracer("medintake/llm"),
	}
}

func (l *Limited) Name() string { return l.next.Name() }

func (l *Limited) Generate(ctx context.Context, prompt string) (string, error) {
	return l.call(ctx, "generate", len(prompt), func(ctx context.Context) (string, error) {
		return l.next.Generate(ctx, prompt)
	})
}

func (l *Limited) Chat(ctx context.Context, messages []Message) (string, error) {
	size := 0
	for _, m := range messages {
		size += len(m.Content)
	}
	return l.call(ctx, "chat", size, func(ctx context.Context) (string, error) {
		return l.next.Chat(ctx, messages)
	})
}

func (l *Limited) call(ctx context.Context, op string, inputBytes int, fn func(context.Context) (string, error)) (string, error) {
	backend := l.next.Name()
	ctx, span := l.tracer.Start(ctx, "llm."+op)
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.backend", backend),
		attribute.Int("llm.input_bytes", inputBytes),
	)

	if err := l.limiter.Wait(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.LLMRequests.WithLabelValues(backend, op, "error").Inc()
		return "", fmt.Errorf("%w: rate limiter: %w", ErrBackend, err)
	}

	start := time.Now()
	out, err := fn(ctx)
	metrics.LLMLatency.WithLabelValues(backend, op).Observe(time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.LLMRequests.WithLabelValues(backend, op, "error").Inc()
		logger.Log.WithField("backend", backend).WithField("op", op).Errorf("llm call failed: %v", err)
		return "", fmt.Errorf("%w: %w", ErrBackend, err)
	}

	metrics.LLMRequests.WithLabelValues(backend, op, "success").Inc()
	span.SetAttributes(attribute.Int("llm.output_bytes", len(out)))
	return out, nil
}
