package domain

// DeclineCode names an expected business-rule rejection. Declines are normal
// outcomes carried in results, never Go errors and never violations.
type DeclineCode string

const (
	DeclineRateLimit         DeclineCode = "RATE_LIMIT"
	DeclineInvalidItem       DeclineCode = "INVALID_ITEM"
	DeclineInvalidType       DeclineCode = "INVALID_TYPE"
	DeclineLevelLocked       DeclineCode = "LEVEL_LOCKED"
	DeclineMaxReached        DeclineCode = "MAX_REACHED"
	DeclineInsufficientFunds DeclineCode = "INSUFFICIENT_FUNDS"
	DeclineNegativeAmount    DeclineCode = "NEGATIVE_AMOUNT"
	DeclineSuspiciousAmount  DeclineCode = "SUSPICIOUS_AMOUNT"
	DeclineInsufficientXP    DeclineCode = "INSUFFICIENT_XP"
)

// Decline carries a rejection code plus whatever makes it actionable for
// the caller (required vs. available, the cap that was exceeded, and so on).
type Decline struct {
	Code          DeclineCode `json:"code"`
	Required      int64       `json:"required,omitempty"`
	Available     int64       `json:"available,omitempty"`
	RequiredLevel int         `json:"required_level,omitempty"`
	CurrentLevel  int         `json:"current_level,omitempty"`
	Cap           int64       `json:"cap,omitempty"`
	MaxCount      int         `json:"max_count,omitempty"`
}

// TransactionSummary is the caller-facing digest of an applied change.
type TransactionSummary struct {
	TransactionID string   `json:"transaction_id"`
	Currency      Currency `json:"currency,omitempty"`
	Amount        int64    `json:"amount"`
	NewBalance    int64    `json:"new_balance"`
}

// PurchaseResult is the discriminated outcome of a purchase attempt.
type PurchaseResult struct {
	OK          bool                `json:"ok"`
	Decline     *Decline            `json:"decline,omitempty"`
	State       *PlayerState        `json:"state,omitempty"`
	Transaction *TransactionSummary `json:"transaction,omitempty"`
}

// EarnResult is the discriminated outcome of an earnings claim.
type EarnResult struct {
	OK           bool     `json:"ok"`
	Decline      *Decline `json:"decline,omitempty"`
	Currency     Currency `json:"currency,omitempty"`
	NewBalance   int64    `json:"new_balance,omitempty"`
	LevelUpReady bool     `json:"level_up_ready,omitempty"`
}

// LevelUpResult is the discriminated outcome of a level-up attempt.
type LevelUpResult struct {
	OK          bool     `json:"ok"`
	Decline     *Decline `json:"decline,omitempty"`
	OldLevel    int      `json:"old_level,omitempty"`
	NewLevel    int      `json:"new_level,omitempty"`
	RemainingXP int64    `json:"remaining_xp,omitempty"`
}

// FieldDrift describes one critical field that left its sync tolerance.
type FieldDrift struct {
	Field     string `json:"field"`
	Client    int64  `json:"client"`
	Server    int64  `json:"server"`
	Tolerance int64  `json:"tolerance"`
}

// SyncResult is the outcome of a client/server state reconciliation. When
// Synced is false the caller must adopt State in place of its own copy.
type SyncResult struct {
	Synced  bool         `json:"synced"`
	Decline *Decline     `json:"decline,omitempty"`
	State   *PlayerState `json:"state,omitempty"`
	Drift   []FieldDrift `json:"drift,omitempty"`
}
