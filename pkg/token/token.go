// Package token holds the per-request data model shared by the providers,
// the orchestrator and the report formatter.
package token

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/bubble-lens/pkg/config"
)

// Query identifies one token on one chain. The zero value is not valid;
// obtain instances from ParseQuery.
type Query struct {
	address string
	chain   config.Chain
}

func (q Query) Address() string     { return q.address }
func (q Query) Chain() config.Chain { return q.chain }
func (q Query) String() string      { return fmt.Sprintf("%s@%s", q.address, q.chain) }
func (q Query) IsZero() bool        { return q.address == "" }

// ValidationError is returned for input that cannot become a Query.
type ValidationError struct {
	Field     string // "address" or "chain"
	Value     string
	Supported []config.Chain
	reason    string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.reason)
}

// SupportedList renders the supported chain codes for user-facing messages.
func (e *ValidationError) SupportedList() string {
	codes := make([]string, len(e.Supported))
	for i, c := range e.Supported {
		codes[i] = string(c)
	}
	return strings.Join(codes, ", ")
}

// ParseQuery validates a raw address/chain pair. An empty chain selects
// defaultChain.
func ParseQuery(rawAddress, rawChain string, defaultChain config.Chain) (Query, error) {
	chain := strings.ToLower(strings.TrimSpace(rawChain))
	if chain == "" {
		chain = string(defaultChain)
	}
	info, ok := config.LookupChain(chain)
	if !ok {
		return Query{}, &ValidationError{Field: "chain", Value: rawChain, Supported: config.AllChains(), reason: "unsupported chain"}
	}

	addr := strings.ToLower(strings.TrimSpace(rawAddress))
	bad := func(reason string) error {
		return &ValidationError{Field: "address", Value: rawAddress, Supported: config.AllChains(), reason: reason}
	}
	if !strings.HasPrefix(addr, info.AddressPrefix) {
		return Query{}, bad("must start with " + info.AddressPrefix)
	}
	if len(addr) != info.AddressLength {
		return Query{}, bad(fmt.Sprintf("must be %d characters", info.AddressLength))
	}
	if !common.IsHexAddress(addr) {
		return Query{}, bad("not a hex address")
	}
	return Query{address: addr, chain: info.Code}, nil
}

// Holder is one entry of the provider's holder graph.
type Holder struct {
	Address     string   `json:"address"`
	DisplayName string   `json:"name"`
	IsContract  bool     `json:"is_contract"`
	Percentage  *float64 `json:"percentage,omitempty"` // nil when the provider value was out of range
	Amount      float64  `json:"amount"`
}

// Metadata is the holder-distribution view of a token.
type Metadata struct {
	Name                  string   `json:"name"`
	Symbol                string   `json:"symbol"`
	IsCollection          bool     `json:"is_collection"`
	DecentralizationScore *float64 `json:"decentralization_score,omitempty"`
	PercentInExchanges    *float64 `json:"percent_in_exchanges,omitempty"`
	PercentInContracts    *float64 `json:"percent_in_contracts,omitempty"`
	LastUpdated           string   `json:"last_updated,omitempty"`
	Holders               []Holder `json:"holders"`
	TotalHolderCount      int      `json:"total_holder_count"`
	Warnings              []string `json:"warnings,omitempty"`
}

// Market is a best-effort price snapshot; every field may be absent.
type Market struct {
	PriceUSD       *float64 `json:"price_usd,omitempty"`
	MarketCapUSD   *float64 `json:"market_cap_usd,omitempty"`
	Volume24hUSD   *float64 `json:"volume_24h_usd,omitempty"`
	PriceChange24h *float64 `json:"price_change_24h,omitempty"`
}

func (m Market) IsEmpty() bool {
	return m.PriceUSD == nil && m.MarketCapUSD == nil && m.Volume24hUSD == nil && m.PriceChange24h == nil
}

// ValidPercent reports whether v is a usable percentage.
func ValidPercent(v float64) bool { return v >= 0 && v <= 100 }
