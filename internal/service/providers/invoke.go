package providers

import (
	"context"
	"errors"
	"time"

	"TokenLens/internal/domain/models"
	"TokenLens/internal/domain/service"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const instrumentationName = "TokenLens/internal/service/providers"

// Invoke runs p.Fetch under a deadline. A provider still running when the
// deadline passes yields Failure(Timeout) and its goroutine is left to
// finish on its own; a panicking provider yields Failure(Unknown).
func Invoke(ctx context.Context, p service.Provider, tokenKey string, deadline time.Duration) models.ProviderResult {
	c := p.Capability()
	ctx, span := otel.Tracer(instrumentationName).Start(ctx, "provider."+p.Name())
	defer span.End()
	span.SetAttributes(
		attribute.String("capability", string(c)),
		attribute.String("token", tokenKey),
	)

	if deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, deadline)
		defer cancel()
	}

	done := make(chan models.ProviderResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- models.Failure(c, models.ErrUnknown, p.Name(), "panic: %v", r)
			}
		}()
		done <- p.Fetch(ctx, tokenKey)
	}()

	var res models.ProviderResult
	select {
	case res = <-done:
	case <-ctx.Done():
		res = ContextFailure(c, p.Name(), ctx.Err())
	}
	res.Capability = c
	if res.IsFailure() {
		if res.Err == nil {
			res.Err = &models.FetchError{Kind: models.ErrUnknown, Provider: p.Name()}
		}
		if res.Err.Provider == "" {
			res.Err.Provider = p.Name()
		}
		span.SetStatus(codes.Error, res.Err.Error())
	}
	span.SetAttributes(attribute.String("outcome", string(res.Status)))
	return res
}

// ContextFailure is the Timeout result of a caller that stopped waiting
// because err ended its context.
func ContextFailure(c models.Capability, provider string, err error) models.ProviderResult {
	if errors.Is(err, context.DeadlineExceeded) {
		return models.Failure(c, models.ErrTimeout, provider, "deadline exceeded")
	}
	return models.Failure(c, models.ErrTimeout, provider, "cancelled: %v", err)
}
