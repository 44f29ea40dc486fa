package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Status tags a ProviderResult.
type Status string

const (
	StatusSuccess Status = "success"
	StatusEmpty   Status = "empty"
	StatusFailure Status = "failure"
)

// ErrorKind classifies why a result could not be determined.
type ErrorKind string

const (
	ErrUnauthorized       ErrorKind = "unauthorized"
	ErrRateLimited        ErrorKind = "rate_limited"
	ErrTimeout            ErrorKind = "timeout"
	ErrNetwork            ErrorKind = "network_error"
	ErrUnconfigured       ErrorKind = "unconfigured"
	ErrUnknown            ErrorKind = "unknown"
	ErrAllProvidersFailed ErrorKind = "all_providers_failed"
)

// FetchError carries a failure kind and, for chain level failures, the
// per-provider failures that produced it.
type FetchError struct {
	Kind     ErrorKind     `json:"kind"`
	Provider string        `json:"provider,omitempty"`
	Message  string        `json:"message,omitempty"`
	Causes   []*FetchError `json:"causes,omitempty"`
}

func (e *FetchError) Error() string {
	var b strings.Builder
	if e.Provider != "" {
		b.WriteString(e.Provider)
		b.WriteString(": ")
	}
	b.WriteString(string(e.Kind))
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if len(e.Causes) > 0 {
		parts := make([]string, len(e.Causes))
		for i, c := range e.Causes {
			parts[i] = c.Error()
		}
		b.WriteString(" [")
		b.WriteString(strings.Join(parts, "; "))
		b.WriteString("]")
	}
	return b.String()
}

// ProviderResult is Success(data), Empty or Failure(kind).
type ProviderResult struct {
	Capability Capability
	Status     Status
	Data       interface{}
	Err        *FetchError
}

// Success wraps data produced for capability c.
func Success(c Capability, data interface{}) ProviderResult {
	return ProviderResult{Capability: c, Status: StatusSuccess, Data: data}
}

// Empty reports that the source has nothing for the token.
func Empty(c Capability) ProviderResult {
	return ProviderResult{Capability: c, Status: StatusEmpty}
}

// Failure reports that the value could not be determined.
func Failure(c Capability, kind ErrorKind, provider, format string, args ...interface{}) ProviderResult {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	return ProviderResult{
		Capability: c,
		Status:     StatusFailure,
		Err:        &FetchError{Kind: kind, Provider: provider, Message: msg},
	}
}

// FailureFrom wraps an existing FetchError.
func FailureFrom(c Capability, err *FetchError) ProviderResult {
	return ProviderResult{Capability: c, Status: StatusFailure, Err: err}
}

func (r ProviderResult) IsSuccess() bool { return r.Status == StatusSuccess }
func (r ProviderResult) IsEmpty() bool   { return r.Status == StatusEmpty }
func (r ProviderResult) IsFailure() bool { return r.Status == StatusFailure }

// Kind returns the failure kind, or "" when r is not a Failure.
func (r ProviderResult) Kind() ErrorKind {
	if r.Status != StatusFailure || r.Err == nil {
		return ""
	}
	return r.Err.Kind
}

// PayloadAs returns the typed Success payload.
func PayloadAs[T any](r ProviderResult) (T, bool) {
	var zero T
	if !r.IsSuccess() {
		return zero, false
	}
	v, ok := r.Data.(T)
	return v, ok
}

type resultWire struct {
	Capability Capability      `json:"capability"`
	Status     Status          `json:"status"`
	Data       json.RawMessage `json:"data,omitempty"`
	Err        *FetchError     `json:"error,omitempty"`
}

// MarshalJSON keeps the payload under "data".
func (r ProviderResult) MarshalJSON() ([]byte, error) {
	w := resultWire{Capability: r.Capability, Status: r.Status, Err: r.Err}
	if r.Data != nil {
		b, err := json.Marshal(r.Data)
		if err != nil {
			return nil, err
		}
		w.Data = b
	}
	return json.Marshal(w)
}

// UnmarshalJSON restores the capability-typed payload.
func (r *ProviderResult) UnmarshalJSON(b []byte) error {
	var w resultWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	switch w.Status {
	case StatusSuccess, StatusEmpty, StatusFailure:
	default:
		return fmt.Errorf("provider result: unknown status %q", w.Status)
	}
	r.Capability, r.Status, r.Err, r.Data = w.Capability, w.Status, w.Err, nil
	if w.Status == StatusSuccess && len(w.Data) > 0 {
		data, err := DecodePayload(w.Capability, w.Data)
		if err != nil {
			return fmt.Errorf("provider result: %w", err)
		}
		r.Data = data
	}
	return nil
}
