package domain

// MintInfo holds the decoded fields of an SPL mint account that the safety
// checks gate on.
type MintInfo struct {
	// HasMintAuthority is true when the mint authority has not been renounced.
	HasMintAuthority bool
	// HasFreezeAuthority is true when a freeze authority is still set.
	HasFreezeAuthority bool
	// Supply is the total token supply in UI units.
	Supply   float64
	Decimals int
	// Token2022 is true when the mint is owned by the Token-2022 program.
	Token2022 bool
}

// TokenMetadata holds the Metaplex metadata fields relevant to filtering.
type TokenMetadata struct {
	Name    string
	Symbol  string
	Mutable bool
}

// HolderBalance is one entry from a largest-token-accounts query.
type HolderBalance struct {
	Address string
	// Pct is the holder's share of total supply, 0..100.
	Pct float64
}

// TokenProfile is the social/metadata aggregator's view of a token.
type TokenProfile struct {
	LogoPresent bool
	Socials     []string
}
