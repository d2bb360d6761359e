package risk

// Limits is the explicit risk configuration injected at construction.
// Never read from process-wide state.
type Limits struct {
	MaxPositionPct     float64 // fraction of account value per position
	MaxOpenPositions   int
	MaxOrdersPerMinute int
	MaxOrdersPerHour   int
	MaxDailyLossMicros int64
}

// Reason is a machine-readable rejection code carried on risk events.
type Reason string

const (
	ReasonNone         Reason = ""
	ReasonRateLimited  Reason = "RateLimited"
	ReasonMaxPositions Reason = "MaxPositions"
	ReasonMaxNotional  Reason = "MaxNotional"
	ReasonMaxDailyLoss Reason = "MaxDailyLoss"
)
