package domain

// Signal is an accepted strategy signal handed to the Order Manager.
// Scoring and generation belong to the strategy collaborator.
type Signal struct {
	Symbol       string  `json:"symbol"`
	Side         Side    `json:"side"`
	Confidence   float64 `json:"confidence"`
	StrategyID   string  `json:"strategy_id"`
	TsUnixMicros int64   `json:"ts"`
}
