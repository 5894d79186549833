package db

import (
	"time"

	"github.com/bubble-lens/pkg/config"
)

// Outcome of a single analysis request.
type Outcome string

const (
	OutcomeComplete Outcome = "complete" // report with bubblemap
	OutcomeDegraded Outcome = "degraded" // report without bubblemap
	OutcomeNotFound Outcome = "not_found"
	OutcomeInvalid  Outcome = "invalid"
	OutcomeFailed   Outcome = "failed"
)

type Analysis struct {
	ID          int64        `json:"id"`
	Address     string       `json:"address"`
	Chain       config.Chain `json:"chain"`
	Name        string       `json:"name"`
	Symbol      string       `json:"symbol"`
	Outcome     Outcome      `json:"outcome"`
	Capture     string       `json:"capture"`      // "ok" or a degradation reason
	Score       *float64     `json:"score"`        // nil when no metadata
	ScoreSource string       `json:"score_source"` // "upstream","computed"
	DurationMS  int64        `json:"duration_ms"`
	CreatedAt   time.Time    `json:"created_at"`
}
