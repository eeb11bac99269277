package domain

// SwapSide distinguishes buy and sell swaps.
type SwapSide string

const (
	SwapSideBuy  SwapSide = "buy"
	SwapSideSell SwapSide = "sell"
)

// SwapRequest describes one swap attempt. Each retry attempt builds a fresh
// request so the executor fetches a fresh quote and blockhash.
type SwapRequest struct {
	Side        SwapSide
	InputMint   string
	OutputMint  string
	// Amount is the input amount in the input token's base units
	// (lamports for SOL-side buys, token base units for sells).
	Amount      uint64
	SlippageBps int
}

// SwapResult is the outcome of one swap attempt. Expected failures
// (unconfirmed transaction, slippage exceeded, blockhash expired) are
// reported with Confirmed=false and Message set; the executor only returns
// a Go error for transport-level problems, and both are treated as a failed
// attempt by the retry loop.
type SwapResult struct {
	Confirmed bool
	// Signature is the confirmed transaction signature.
	Signature string
	// Price is the effective execution price in quote tokens per base token.
	Price float64
	// OutAmount is the received output amount in UI units.
	OutAmount float64
	Message   string
}

// RouteQuote is the route/quote service's answer for a prospective swap.
type RouteQuote struct {
	OutAmount      uint64
	PriceImpactPct float64
}
