package domain

import "time"

// TradeRecord is one row of the durable trade journal: a confirmed entry or
// exit swap. The in-memory position store stays authoritative; the journal is
// an append-only audit mirror used for reporting and archival.
type TradeRecord struct {
	ID        string
	Mint      string
	Symbol    string
	Side      SwapSide
	Price     float64
	Amount    float64
	Signature string
	// Reason is set on exit records only.
	Reason    string
	CreatedAt time.Time
}
