package models

import "time"

// Event stages.
const (
	StageProvider   = "provider"
	StageCapability = "capability"
)

// Event is the structured instrumentation record emitted per provider
// attempt and per settled capability.
type Event struct {
	ID          string      `json:"id"`
	ReportID    string      `json:"report_id,omitempty"`
	TokenKey    string      `json:"token_key"`
	Stage       string      `json:"stage"`
	Capability  Capability  `json:"capability"`
	Provider    string      `json:"provider,omitempty"`
	CacheStatus CacheStatus `json:"cache_status"`
	ElapsedMs   int64       `json:"elapsed_ms"`
	Outcome     Status      `json:"outcome"`
	ErrorKind   ErrorKind   `json:"error_kind,omitempty"`
	At          time.Time   `json:"at"`
}
