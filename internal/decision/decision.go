// Package decision resolves risk and trust into a recommended action.
//
// The core is a fixed 5x5 matrix indexed by (risk level, minimum trust
// level) whose cells are hand-specified: caution rises as risk rises or
// trust falls. Around the lookup the recommender builds an ordered
// reasoning chain, a confidence value, and alternative options. Nothing
// here executes anything; every recommendation carries an advisory
// disclaimer.
package decision

import (
	"fmt"
	"math"
	"time"

	"github.com/mnbara/advisory/internal/flags"
	"github.com/mnbara/advisory/internal/risk"
	"github.com/mnbara/advisory/internal/trust"
)

// Action is a recommended course of action in ascending order of caution.
type Action int

const (
	ActionProceed Action = iota
	ActionProceedWithEscrow
	ActionRequireVerification
	ActionManualReview
	ActionDecline
)

var actionNames = [...]string{"PROCEED", "PROCEED_WITH_ESCROW", "REQUIRE_VERIFICATION", "MANUAL_REVIEW", "DECLINE"}

func (a Action) String() string {
	if a < ActionProceed || a > ActionDecline {
		return "UNKNOWN"
	}
	return actionNames[a]
}

// MarshalJSON renders the action as its name.
func (a Action) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.String() + `"`), nil
}

// UnmarshalJSON parses an action name back to its ordinal.
func (a *Action) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) >= 2 && s[0] == '"' {
		s = s[1 : len(s)-1]
	}
	for i, name := range actionNames {
		if name == s {
			*a = Action(i)
			return nil
		}
	}
	return fmt.Errorf("unknown action %q", s)
}

// Impact tags one reasoning step's direction.
type Impact string

const (
	ImpactPositive Impact = "POSITIVE"
	ImpactNeutral  Impact = "NEUTRAL"
	ImpactNegative Impact = "NEGATIVE"
)

// ReasoningStep is one entry in the ordered explanation chain.
type ReasoningStep struct {
	Step       int    `json:"step"`
	Factor     string `json:"factor"`
	Evaluation string `json:"evaluation"`
	Impact     Impact `json:"impact"`
}

// Alternative is a nearby action the caller may take instead.
type Alternative struct {
	Action     Action   `json:"action"`
	Conditions []string `json:"conditions"`
	Tradeoffs  []string `json:"tradeoffs"`
}

// Recommendation is the immutable advisory output for one match.
type Recommendation struct {
	RequestID    string          `json:"requestId"`
	TravelerID   string          `json:"travelerId"`
	Action       Action          `json:"action"`
	Confidence   float64         `json:"confidence"`
	Reasoning    []ReasoningStep `json:"reasoning"`
	Warnings     []string        `json:"warnings"`
	Alternatives []Alternative   `json:"alternatives"`
	Disclaimer   string          `json:"disclaimer"`
	GeneratedAt  time.Time       `json:"generatedAt"`
}

const disclaimer = "This is an advisory recommendation only. No actions have been executed."

// matrix maps [risk ordinal][trust ordinal] to an action. Trust columns
// run RESTRICTED..VERIFIED left to right; risk rows MINIMAL..CRITICAL top
// to bottom.
var matrix = [5][5]Action{
	// MINIMAL
	{ActionRequireVerification, ActionProceedWithEscrow, ActionProceedWithEscrow, ActionProceed, ActionProceed},
	// LOW
	{ActionRequireVerification, ActionRequireVerification, ActionProceedWithEscrow, ActionProceedWithEscrow, ActionProceed},
	// MEDIUM
	{ActionManualReview, ActionRequireVerification, ActionRequireVerification, ActionProceedWithEscrow, ActionProceedWithEscrow},
	// HIGH
	{ActionDecline, ActionManualReview, ActionManualReview, ActionRequireVerification, ActionRequireVerification},
	// CRITICAL
	{ActionDecline, ActionDecline, ActionDecline, ActionManualReview, ActionManualReview},
}

func init() {
	// Totality assertion: every (risk, trust) cell must hold a defined
	// action. Guards against a bad edit leaving a zero-valued hole that
	// silently recommends PROCEED.
	for r := risk.LevelMinimal; r <= risk.LevelCritical; r++ {
		for t := trust.LevelRestricted; t <= trust.LevelVerified; t++ {
			a := matrix[r][t]
			if a < ActionProceed || a > ActionDecline {
				panic(fmt.Sprintf("decision matrix cell (%s, %s) undefined", r, t))
			}
		}
	}
	// Monotonicity along both axes: more risk or less trust never lowers
	// caution.
	for r := risk.LevelMinimal; r <= risk.LevelCritical; r++ {
		for t := trust.LevelRestricted; t < trust.LevelVerified; t++ {
			if matrix[r][t] < matrix[r][t+1] {
				panic(fmt.Sprintf("decision matrix not monotonic in trust at (%s, %s)", r, t))
			}
		}
	}
	for t := trust.LevelRestricted; t <= trust.LevelVerified; t++ {
		for r := risk.LevelMinimal; r < risk.LevelCritical; r++ {
			if matrix[r][t] > matrix[r+1][t] {
				panic(fmt.Sprintf("decision matrix not monotonic in risk at (%s, %s)", r, t))
			}
		}
	}
}

// LookupAction resolves the matrix cell for a risk level and the minimum
// trust level across both parties.
func LookupAction(r risk.Level, t trust.Level) Action {
	return matrix[r][t]
}

// Input carries the upstream results the recommender consumes.
type Input struct {
	RequestID      string
	TravelerID     string
	BuyerTrust     *trust.Score
	TravelerTrust  *trust.Score
	RiskAssessment *risk.Assessment
	MatchScore     float64 // optional, informational only
}

// Recommender builds decision recommendations. Stateless apart from the
// flag snapshot and clock; safe for concurrent use.
type Recommender struct {
	flags *flags.Flags
	now   func() time.Time
}

// NewRecommender creates a recommender gated by the given flag snapshot.
func NewRecommender(f *flags.Flags) *Recommender {
	return &Recommender{flags: f, now: time.Now}
}

// WithClock overrides the clock for deterministic tests.
func (r *Recommender) WithClock(now func() time.Time) *Recommender {
	r.now = now
	return r
}

// Recommend resolves one match into an advisory action. Returns nil when
// decision recommendations are disabled.
func (r *Recommender) Recommend(in Input) *Recommendation {
	if !r.flags.Capability(flags.AICoreEnabled, flags.AIDecisionRecommend) {
		return nil
	}

	var reasoning []ReasoningStep
	var warnings []string
	step := 1

	buyerImpact := trustImpact(in.BuyerTrust.Level)
	reasoning = append(reasoning, ReasoningStep{
		Step:       step,
		Factor:     "Buyer Trust",
		Evaluation: fmt.Sprintf("Buyer trust level: %s (%d/100)", in.BuyerTrust.Level, in.BuyerTrust.Score),
		Impact:     buyerImpact,
	})
	step++
	if buyerImpact == ImpactNegative {
		warnings = append(warnings, "Buyer has restricted trust level")
	}

	travelerImpact := trustImpact(in.TravelerTrust.Level)
	reasoning = append(reasoning, ReasoningStep{
		Step:       step,
		Factor:     "Traveler Trust",
		Evaluation: fmt.Sprintf("Traveler trust level: %s (%d/100)", in.TravelerTrust.Level, in.TravelerTrust.Score),
		Impact:     travelerImpact,
	})
	step++
	if travelerImpact == ImpactNegative {
		warnings = append(warnings, "Traveler has restricted trust level")
	}

	overallImpact := riskImpact(in.RiskAssessment.OverallRisk)
	reasoning = append(reasoning, ReasoningStep{
		Step:       step,
		Factor:     "Risk Assessment",
		Evaluation: fmt.Sprintf("Overall risk: %s (%d/100)", in.RiskAssessment.OverallRisk, in.RiskAssessment.RiskScore),
		Impact:     overallImpact,
	})
	step++
	for _, fl := range in.RiskAssessment.Flags {
		warnings = append(warnings, fl.Message)
	}

	minTrust := trust.MinLevel(in.BuyerTrust.Level, in.TravelerTrust.Level)
	action := LookupAction(in.RiskAssessment.OverallRisk, minTrust)

	matrixImpact := ImpactNeutral
	if action == ActionProceed {
		matrixImpact = ImpactPositive
	} else if action == ActionDecline {
		matrixImpact = ImpactNegative
	}
	reasoning = append(reasoning, ReasoningStep{
		Step:       step,
		Factor:     "Decision Matrix",
		Evaluation: fmt.Sprintf("Risk: %s, Min Trust: %s -> %s", in.RiskAssessment.OverallRisk, minTrust, action),
		Impact:     matrixImpact,
	})

	var negative, positive int
	for _, s := range reasoning {
		switch s.Impact {
		case ImpactNegative:
			negative++
		case ImpactPositive:
			positive++
		}
	}
	confidence := 0.85 - 0.15*float64(negative) + 0.03*float64(positive)
	confidence = math.Min(0.99, math.Max(0.30, confidence))
	confidence = math.Round(confidence*100) / 100

	return &Recommendation{
		RequestID:    in.RequestID,
		TravelerID:   in.TravelerID,
		Action:       action,
		Confidence:   confidence,
		Reasoning:    reasoning,
		Warnings:     warnings,
		Alternatives: alternatives(action),
		Disclaimer:   disclaimer,
		GeneratedAt:  r.now(),
	}
}

func trustImpact(l trust.Level) Impact {
	switch l {
	case trust.LevelRestricted:
		return ImpactNegative
	case trust.LevelNew:
		return ImpactNeutral
	default:
		return ImpactPositive
	}
}

func riskImpact(l risk.Level) Impact {
	switch l {
	case risk.LevelCritical, risk.LevelHigh:
		return ImpactNegative
	case risk.LevelMedium:
		return ImpactNeutral
	default:
		return ImpactPositive
	}
}

// alternatives returns the fixed adjacent option for an action. PROCEED
// has no alternative: there is nothing less cautious to offer.
func alternatives(a Action) []Alternative {
	switch a {
	case ActionDecline:
		return []Alternative{{
			Action:     ActionManualReview,
			Conditions: []string{"If buyer provides additional verification"},
			Tradeoffs:  []string{"Increased operational cost"},
		}}
	case ActionManualReview:
		return []Alternative{{
			Action:     ActionRequireVerification,
			Conditions: []string{"If automated verification passes"},
			Tradeoffs:  []string{"May miss edge cases"},
		}}
	case ActionRequireVerification:
		return []Alternative{{
			Action:     ActionProceedWithEscrow,
			Conditions: []string{"If user has verified phone"},
			Tradeoffs:  []string{"Slightly higher risk"},
		}}
	case ActionProceedWithEscrow:
		return []Alternative{{
			Action:     ActionProceed,
			Conditions: []string{"If both parties are VERIFIED"},
			Tradeoffs:  []string{"Minimal additional risk"},
		}}
	default:
		return nil
	}
}
