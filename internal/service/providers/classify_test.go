package providers

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"TokenLens/internal/domain/models"
	xhttp "TokenLens/pkg/http"

	"github.com/stretchr/testify/assert"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

type refusedErr struct{}

func (refusedErr) Error() string   { return "connection refused" }
func (refusedErr) Timeout() bool   { return false }
func (refusedErr) Temporary() bool { return false }

func TestClassify(t *testing.T) {
	c := models.CapabilityMarketSnapshot
	cases := []struct {
		name   string
		err    error
		status models.Status
		kind   models.ErrorKind
	}{
		{"401", &xhttp.StatusError{Code: 401}, models.StatusFailure, models.ErrUnauthorized},
		{"403", fmt.Errorf("get: %w", &xhttp.StatusError{Code: 403}), models.StatusFailure, models.ErrUnauthorized},
		{"429", &xhttp.StatusError{Code: 429}, models.StatusFailure, models.ErrRateLimited},
		{"404", &xhttp.StatusError{Code: 404}, models.StatusEmpty, ""},
		{"503", &xhttp.StatusError{Code: 503}, models.StatusFailure, models.ErrNetwork},
		{"418", &xhttp.StatusError{Code: 418}, models.StatusFailure, models.ErrUnknown},
		{"deadline", fmt.Errorf("get: %w", context.DeadlineExceeded), models.StatusFailure, models.ErrTimeout},
		{"net timeout", timeoutErr{}, models.StatusFailure, models.ErrTimeout},
		{"refused", fmt.Errorf("request failed: %w", refusedErr{}), models.StatusFailure, models.ErrNetwork},
		{"unconfigured", fmt.Errorf("api key: %w", ErrUnconfigured), models.StatusFailure, models.ErrUnconfigured},
		{"decode", &decodeError{err: errors.New("bad json")}, models.StatusFailure, models.ErrUnknown},
		{"other", errors.New("weird"), models.StatusFailure, models.ErrUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := Classify(c, "p", tc.err)
			assert.Equal(t, tc.status, res.Status)
			assert.Equal(t, tc.kind, res.Kind())
		})
	}
}

func TestClassifyKeepsMessageVerbatim(t *testing.T) {
	res := Classify(models.CapabilitySocialMentions, "reddit", errors.New("quota at 100%s of %d"))
	assert.Equal(t, "quota at 100%s of %d", res.Err.Message)
	assert.Equal(t, "reddit", res.Err.Provider)
}

func TestContextFailure(t *testing.T) {
	res := ContextFailure(models.CapabilityWhaleActivity, "whalealert", context.DeadlineExceeded)
	assert.Equal(t, models.ErrTimeout, res.Kind())
	assert.Equal(t, "deadline exceeded", res.Err.Message)

	res = ContextFailure(models.CapabilityWhaleActivity, "whalealert", context.Canceled)
	assert.Equal(t, models.ErrTimeout, res.Kind())
	assert.Equal(t, "cancelled: context canceled", res.Err.Message)
}
