package providers

import (
	"context"
	"errors"
	"net"
	"net/http"

	"TokenLens/internal/domain/models"
	xhttp "TokenLens/pkg/http"
)

// ErrUnconfigured marks a missing credential or token identifier.
var ErrUnconfigured = errors.New("unconfigured")

// errNotFound is mapped to Empty.
var errNotFound = errors.New("not found")

type decodeError struct{ err error }

func (e *decodeError) Error() string { return "decode: " + e.err.Error() }
func (e *decodeError) Unwrap() error { return e.err }

// Classify maps a transport or upstream error to a ProviderResult.
func Classify(c models.Capability, provider string, err error) models.ProviderResult {
	if err == nil {
		return models.Empty(c)
	}

	var se *xhttp.StatusError
	if errors.As(err, &se) {
		switch {
		case se.Code == http.StatusUnauthorized || se.Code == http.StatusForbidden:
			return models.Failure(c, models.ErrUnauthorized, provider, "status %d", se.Code)
		case se.Code == http.StatusTooManyRequests:
			return models.Failure(c, models.ErrRateLimited, provider, "status 429 retry-after=%q", se.RetryAfter)
		case se.Code == http.StatusNotFound:
			return models.Empty(c)
		case se.Code >= 500:
			return models.Failure(c, models.ErrNetwork, provider, "status %d", se.Code)
		default:
			return models.Failure(c, models.ErrUnknown, provider, "status %d: %s", se.Code, se.Body)
		}
	}

	var de *decodeError
	var ne net.Error
	switch {
	case errors.Is(err, ErrUnconfigured):
		return models.Failure(c, models.ErrUnconfigured, provider, "%s", err.Error())
	case errors.Is(err, errNotFound):
		return models.Empty(c)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return models.Failure(c, models.ErrTimeout, provider, "%s", err.Error())
	case errors.As(err, &de):
		return models.Failure(c, models.ErrUnknown, provider, "%s", err.Error())
	case errors.As(err, &ne):
		if ne.Timeout() {
			return models.Failure(c, models.ErrTimeout, provider, "%s", err.Error())
		}
		return models.Failure(c, models.ErrNetwork, provider, "%s", err.Error())
	default:
		return models.Failure(c, models.ErrUnknown, provider, "%s", err.Error())
	}
}
