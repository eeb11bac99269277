package domain

import "time"

// PositionStatus tracks the lifecycle of a sniped position.
type PositionStatus string

const (
	PositionStatusActive PositionStatus = "active"
	PositionStatusSold   PositionStatus = "sold"
	PositionStatusFailed PositionStatus = "failed"
)

// ExitReason records which condition closed a position.
type ExitReason string

const (
	ExitReasonTakeProfit ExitReason = "take_profit"
	ExitReasonStopLoss   ExitReason = "stop_loss"
	ExitReasonTTL        ExitReason = "ttl"
	ExitReasonManual     ExitReason = "manual"
)

// Position is the mutable record of one sniped token. The mint address is the
// primary key: at most one Position per mint exists at any time. Positions are
// created on confirmed acquisition, updated by price refreshes, and closed by
// the liquidation path; closed positions are retained until evicted.
type Position struct {
	Mint          string
	Symbol        string
	EntryPrice    float64
	Amount        float64
	EntrySig      string
	OpenedAt      time.Time
	Status        PositionStatus
	CurrentPrice  float64
	CurrentValue  float64
	PnL           float64
	PnLPercent    float64
	ExitReason    ExitReason
	ExitSig       string
	ClosedAt      *time.Time
}

// EntryValue returns the invested notional at acquisition time.
func (p *Position) EntryValue() float64 {
	return p.EntryPrice * p.Amount
}

// PositionStats aggregates the lifetime performance of the store.
type PositionStats struct {
	Active      int
	Closed      int
	Wins        int
	Losses      int
	WinRate     float64 // profitable closes / total closes x 100
	RealizedPnL float64
}
