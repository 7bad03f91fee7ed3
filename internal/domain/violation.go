package domain

import "time"

// ViolationType names an anomaly class recorded by the pipeline.
type ViolationType string

const (
	ViolationExcessiveEarnings    ViolationType = "excessive_earnings"
	ViolationImpossibleAction     ViolationType = "impossible_action"
	ViolationBannedAction         ViolationType = "banned_action"
	ViolationStateMismatch        ViolationType = "state_mismatch"
	ViolationUnusualTiming        ViolationType = "unusual_timing"
	ViolationInvalidEarningReason ViolationType = "invalid_earning_reason"
)

// Severity classifies how a violation is handled: critical violations are
// counted immediately, everything else only rides the batched analytics path.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// severityTable is the static classification of known violation types.
var severityTable = map[ViolationType]Severity{
	ViolationExcessiveEarnings:    SeverityCritical,
	ViolationImpossibleAction:     SeverityCritical,
	ViolationBannedAction:         SeverityCritical,
	ViolationStateMismatch:        SeverityWarning,
	ViolationUnusualTiming:        SeverityWarning,
	ViolationInvalidEarningReason: SeverityWarning,
}

// SeverityOf returns the severity for a violation type, defaulting to info
// for anything the table does not name.
func SeverityOf(t ViolationType) Severity {
	if s, ok := severityTable[t]; ok {
		return s
	}
	return SeverityInfo
}

// Violation is an immutable anomaly record produced by the validators.
type Violation struct {
	UserID    string                 `json:"user_id"`
	Type      ViolationType          `json:"type"`
	Severity  Severity               `json:"severity"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// ViolationSummary is the per-user counter view exposed to operators.
type ViolationSummary struct {
	UserID        string    `json:"user_id"`
	Total         int64     `json:"total"`
	LastViolation time.Time `json:"last_violation,omitempty"`
	LastSeverity  Severity  `json:"last_severity,omitempty"`
}
