// Package intent classifies what a user is trying to do from weighted
// context signals. Deterministic and read-only: the same signals always
// produce the same classification, and low-evidence classifications
// degrade to UNKNOWN rather than guessing.
package intent

import (
	"fmt"
	"math"
	"time"

	"github.com/mnbara/advisory/internal/flags"
)

// Type is a classified user intent.
type Type string

const (
	TypeBuy     Type = "BUY"
	TypeRequest Type = "REQUEST"
	TypeTravel  Type = "TRAVEL"
	TypeBrowse  Type = "BROWSE"
	TypeUnknown Type = "UNKNOWN"
)

// ConfidenceLevel buckets the numeric confidence for display.
type ConfidenceLevel string

const (
	ConfidenceHigh   ConfidenceLevel = "HIGH"
	ConfidenceMedium ConfidenceLevel = "MEDIUM"
	ConfidenceLow    ConfidenceLevel = "LOW"
)

// Signal records one input's contribution to the classification.
type Signal struct {
	Source       string  `json:"source"`
	Value        string  `json:"value"`
	Weight       float64 `json:"weight"`
	Contribution float64 `json:"contribution"`
}

// Result is a complete intent classification.
type Result struct {
	Intent          Type            `json:"intent"`
	Confidence      float64         `json:"confidence"`
	ConfidenceLevel ConfidenceLevel `json:"confidenceLevel"`
	Signals         []Signal        `json:"signals"`
	Reasoning       string          `json:"reasoning"`
	Timestamp       time.Time       `json:"timestamp"`
}

// Input carries the optional context signals. Empty fields contribute
// nothing.
type Input struct {
	PageContext     string `json:"pageContext,omitempty"`
	Action          string `json:"action,omitempty"`
	UserRole        string `json:"userRole,omitempty"`
	ItemInteraction string `json:"itemInteraction,omitempty"`
}

// Signal weights. itemInteraction is accepted on the input and kept in
// the audit trail but has no intent mapping yet, so it never scores.
const (
	weightPageContext = 0.40
	weightAction      = 0.35
	weightUserRole    = 0.15
)

var pageIntents = map[string]Type{
	"/request/create": TypeRequest,
	"/trip/create":    TypeTravel,
	"/matches":        TypeBuy,
	"/offers":         TypeBuy,
	"/my-requests":    TypeRequest,
	"/my-trips":       TypeTravel,
}

var actionIntents = map[string]Type{
	"submit_request": TypeRequest,
	"post_trip":      TypeTravel,
	"accept_offer":   TypeBuy,
	"make_offer":     TypeTravel,
	"view_only":      TypeBrowse,
}

// scoreOrder fixes the winner-take-all scan so ties resolve the same
// way on every run.
var scoreOrder = []Type{TypeBuy, TypeRequest, TypeTravel, TypeBrowse, TypeUnknown}

// Classifier performs deterministic intent classification.
type Classifier struct {
	flags *flags.Flags
	now   func() time.Time
}

// NewClassifier creates a classifier gated on the feature flags.
func NewClassifier(f *flags.Flags) *Classifier {
	return &Classifier{flags: f, now: time.Now}
}

// WithClock overrides the clock for deterministic tests.
func (c *Classifier) WithClock(now func() time.Time) *Classifier {
	c.now = now
	return c
}

// Classify scores each signal toward an intent and picks the winner.
// Returns nil when intent classification is disabled.
func (c *Classifier) Classify(in Input) *Result {
	if !c.flags.Capability(flags.AICoreEnabled, flags.AIIntentClassification) {
		return nil
	}

	scores := make(map[Type]float64, len(scoreOrder))
	var signals []Signal

	if in.PageContext != "" {
		intent, ok := pageIntents[in.PageContext]
		if !ok {
			intent = TypeBrowse
		}
		scores[intent] += weightPageContext
		signals = append(signals, Signal{Source: "page_context", Value: in.PageContext, Weight: weightPageContext, Contribution: weightPageContext})
	}

	if in.Action != "" {
		intent, ok := actionIntents[in.Action]
		if !ok {
			intent = TypeUnknown
		}
		scores[intent] += weightAction
		signals = append(signals, Signal{Source: "action", Value: in.Action, Weight: weightAction, Contribution: weightAction})
	}

	if in.UserRole != "" {
		intent := TypeTravel
		if in.UserRole == "buyer" {
			intent = TypeRequest
		}
		scores[intent] += weightUserRole
		signals = append(signals, Signal{Source: "user_role", Value: in.UserRole, Weight: weightUserRole, Contribution: weightUserRole})
	}

	winner := TypeUnknown
	var maxScore, total float64
	for _, intent := range scoreOrder {
		total += scores[intent]
		if scores[intent] > maxScore {
			maxScore = scores[intent]
			winner = intent
		}
	}

	// The weights sum below 1, so the denominator clamp makes the
	// confidence equal the winning score.
	var confidence float64
	if total > 0 {
		confidence = maxScore / math.Max(total, 1)
	}

	level := ConfidenceLow
	switch {
	case confidence >= 0.8:
		level = ConfidenceHigh
	case confidence >= 0.5:
		level = ConfidenceMedium
	}

	if confidence < 0.25 {
		winner = TypeUnknown
	}

	if signals == nil {
		signals = []Signal{}
	}

	return &Result{
		Intent:          winner,
		Confidence:      round2(confidence),
		ConfidenceLevel: level,
		Signals:         signals,
		Reasoning:       fmt.Sprintf("Classified as %s based on %d signals with %s confidence", winner, len(signals), level),
		Timestamp:       c.now(),
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
