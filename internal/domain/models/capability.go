package models

import (
	"fmt"
	"strings"
)

// Capability is a logical data category needed for a report.
type Capability string

const (
	CapabilityMarketSnapshot     Capability = "market_snapshot"
	CapabilitySocialMentions     Capability = "social_mentions"
	CapabilityWhaleActivity      Capability = "whale_activity"
	CapabilityTechnicalSignals   Capability = "technical_signals"
	CapabilityHolderDistribution Capability = "holder_distribution"
)

// AllCapabilities lists capabilities in canonical report order.
func AllCapabilities() []Capability {
	return []Capability{
		CapabilityMarketSnapshot,
		CapabilitySocialMentions,
		CapabilityWhaleActivity,
		CapabilityTechnicalSignals,
		CapabilityHolderDistribution,
	}
}

// IsValid reports whether c is a known capability.
func (c Capability) IsValid() bool {
	switch c {
	case CapabilityMarketSnapshot, CapabilitySocialMentions, CapabilityWhaleActivity,
		CapabilityTechnicalSignals, CapabilityHolderDistribution:
		return true
	default:
		return false
	}
}

// Order returns the canonical position of c, or -1 when unknown.
func (c Capability) Order() int {
	for i, known := range AllCapabilities() {
		if known == c {
			return i
		}
	}
	return -1
}

func (c Capability) String() string { return string(c) }

// ParseCapability accepts snake_case names, case-insensitively.
func ParseCapability(s string) (Capability, error) {
	c := Capability(strings.ToLower(strings.TrimSpace(s)))
	if !c.IsValid() {
		return "", fmt.Errorf("unknown capability %q", s)
	}
	return c, nil
}

// ParseCapabilities parses a comma separated list. Empty input means all.
func ParseCapabilities(csv string) ([]Capability, error) {
	if strings.TrimSpace(csv) == "" {
		return AllCapabilities(), nil
	}
	var out []Capability
	for _, part := range strings.Split(csv, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		c, err := ParseCapability(part)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}
