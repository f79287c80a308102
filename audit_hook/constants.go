package audithook

// Action constants for audit events.
const (
	// Session actions
	ActionSessionOpened  = "session.opened"
	ActionSessionSettled = "session.settled"
	ActionSessionAborted = "session.aborted"

	// Settlement actions
	ActionSettlementFailed = "settlement.failed"

	// Operation actions
	ActionTake   = "delta.take"
	ActionSettle = "delta.settle"

	// Claim actions
	ActionClaimMinted = "claim.minted"
	ActionClaimBurned = "claim.burned"
)

// Resource constants for audit events.
const (
	ResourceSession = "session"
	ResourceDelta   = "delta"
	ResourceClaim   = "claim"
)

// Category constants for audit events.
const (
	CategorySession    = "session"
	CategorySettlement = "settlement"
	CategoryClaims     = "claims"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)
