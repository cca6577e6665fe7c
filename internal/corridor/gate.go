package corridor

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/mnbara/advisory/internal/flags"
	"github.com/mnbara/advisory/internal/trust"
)

// GatingResult reports whether both parties clear the corridor's trust bar.
type GatingResult struct {
	Passed                  bool        `json:"passed"`
	BuyerMeetsRequirement   bool        `json:"buyerMeetsRequirement"`
	TravelerMeetsRequirement bool       `json:"travelerMeetsRequirement"`
	RequiredBuyerTrust      Requirement `json:"requiredBuyerTrust"`
	RequiredTravelerTrust   Requirement `json:"requiredTravelerTrust"`
	ActualBuyerTrust        trust.Level `json:"actualBuyerTrust"`
	ActualTravelerTrust     trust.Level `json:"actualTravelerTrust"`
	DowngradeReason         string      `json:"downgradeReason,omitempty"`
	IsHighValue             bool        `json:"isHighValue"`
	// GatingDisabled marks a pass produced by the TRUST_GATING flag being
	// off rather than by the parties actually clearing the bar.
	GatingDisabled bool `json:"gatingDisabled,omitempty"`
}

// EscrowRecommendation is advice only. Required is always false: this
// subsystem never enforces escrow.
type EscrowRecommendation struct {
	Recommended bool         `json:"recommended"`
	Required    bool         `json:"required"`
	Reason      string       `json:"reason"`
	Policy      EscrowPolicy `json:"policy"`
}

// BandResult is the selected value band as reported to callers.
type BandResult struct {
	Label      string  `json:"label"`
	Multiplier float64 `json:"multiplier"`
}

// Assessment is the gate's full verdict for one transaction on one lane.
type Assessment struct {
	CorridorID           string               `json:"corridorId"`
	CorridorName         string               `json:"corridorName"`
	Origin               string               `json:"origin"`
	Destination          string               `json:"destination"`
	IsSupported          bool                 `json:"isSupported"`
	RiskMultiplier       float64              `json:"riskMultiplier"`
	ValueBand            BandResult           `json:"valueBand"`
	TrustGating          GatingResult         `json:"trustGating"`
	EscrowRecommendation EscrowRecommendation `json:"escrowRecommendation"`
	Restrictions         []string             `json:"restrictions"`
	Warnings             []string             `json:"warnings"`
	AssessedAt           time.Time            `json:"assessedAt"`
}

// GateInput carries one transaction's corridor-relevant attributes.
type GateInput struct {
	Origin        string
	Destination   string
	ItemValueUSD  float64
	DeliveryDays  int
	BuyerTrust    *trust.Score
	TravelerTrust *trust.Score
}

// Gate evaluates corridor policy. Stateless apart from the flag snapshot
// and clock; safe for concurrent use.
type Gate struct {
	flags *flags.Flags
	now   func() time.Time
}

// NewGate creates a corridor gate using the given flag snapshot.
func NewGate(f *flags.Flags) *Gate {
	return &Gate{flags: f, now: time.Now}
}

// WithClock overrides the clock for deterministic tests.
func (g *Gate) WithClock(now func() time.Time) *Gate {
	g.now = now
	return g
}

// Assess evaluates a transaction against its corridor. Returns nil when
// corridor advisory is disabled. An unknown corridor yields a fully-formed
// unsupported assessment, never an error.
func (g *Gate) Assess(in GateInput) *Assessment {
	if !g.flags.Capability(flags.AICoreEnabled, flags.CorridorAIAdvisory) {
		return nil
	}

	cfg := Lookup(in.Origin, in.Destination)
	if cfg == nil {
		return g.unsupported(in)
	}

	band := cfg.ValueBandFor(in.ItemValueUSD)
	window := cfg.DeliveryWindowFor(in.DeliveryDays)
	multiplier := math.Round(cfg.Customs*band.Multiplier*window.Multiplier*100) / 100

	isHighValue := in.ItemValueUSD > cfg.TrustRequirements.HighValueThreshold
	gating := g.evaluateGating(cfg, in.BuyerTrust, in.TravelerTrust, isHighValue)
	escrow := escrowRecommendation(cfg.EscrowPolicy, isHighValue, gating.Passed)

	var warnings []string
	if isHighValue {
		warnings = append(warnings, fmt.Sprintf("High-value item (>%.0f USD) - enhanced trust required", cfg.TrustRequirements.HighValueThreshold))
	}
	if !gating.Passed {
		reason := gating.DowngradeReason
		if reason == "" {
			reason = "Trust requirements not met"
		}
		warnings = append(warnings, reason)
	}
	if len(cfg.Restrictions) > 0 {
		warnings = append(warnings, "Restricted items: "+strings.Join(cfg.Restrictions, ", "))
	}

	return &Assessment{
		CorridorID:           cfg.ID,
		CorridorName:         cfg.Name,
		Origin:               cfg.Origin,
		Destination:          cfg.Destination,
		IsSupported:          true,
		RiskMultiplier:       multiplier,
		ValueBand:            BandResult{Label: band.Label, Multiplier: band.Multiplier},
		TrustGating:          gating,
		EscrowRecommendation: escrow,
		Restrictions:         cfg.Restrictions,
		Warnings:             warnings,
		AssessedAt:           g.now(),
	}
}

func (g *Gate) unsupported(in GateInput) *Assessment {
	return &Assessment{
		CorridorID:     in.Origin + "_" + in.Destination,
		CorridorName:   in.Origin + " → " + in.Destination,
		Origin:         in.Origin,
		Destination:    in.Destination,
		IsSupported:    false,
		RiskMultiplier: 1.0,
		ValueBand:      BandResult{Label: "Unknown", Multiplier: 1.0},
		TrustGating: GatingResult{
			Passed:                  false,
			RequiredBuyerTrust:      RequireAny,
			RequiredTravelerTrust:   RequireAny,
			ActualBuyerTrust:        levelOf(in.BuyerTrust),
			ActualTravelerTrust:     levelOf(in.TravelerTrust),
			DowngradeReason:         "Corridor not supported",
		},
		EscrowRecommendation: EscrowRecommendation{
			Recommended: true,
			Required:    false,
			Reason:      "Unsupported corridor",
			Policy:      EscrowAlwaysRecommended,
		},
		Restrictions: []string{},
		Warnings:     []string{"This corridor is not currently supported"},
		AssessedAt:   g.now(),
	}
}

// evaluateGating enforces the corridor's trust bar. High-value
// transactions force both requirements up to at least TRUSTED regardless
// of the configured minimums. With TRUST_GATING off the gate always
// passes; GatingDisabled records that the pass was a bypass. A missing
// score counts as RESTRICTED, so an unscored party never clears the bar.
func (g *Gate) evaluateGating(cfg *Config, buyer, traveler *trust.Score, isHighValue bool) GatingResult {
	buyerLevel := levelOf(buyer)
	travelerLevel := levelOf(traveler)

	if !g.flags.Enabled(flags.TrustGating) {
		return GatingResult{
			Passed:                   true,
			BuyerMeetsRequirement:    true,
			TravelerMeetsRequirement: true,
			RequiredBuyerTrust:       RequireAny,
			RequiredTravelerTrust:    RequireAny,
			ActualBuyerTrust:         buyerLevel,
			ActualTravelerTrust:      travelerLevel,
			IsHighValue:              isHighValue,
			GatingDisabled:           true,
		}
	}

	requiredBuyer := cfg.TrustRequirements.MinBuyerTrust
	requiredTraveler := cfg.TrustRequirements.MinTravelerTrust
	if isHighValue {
		if requiredBuyer.Level() < trust.LevelTrusted {
			requiredBuyer = RequireTrusted
		}
		if requiredTraveler.Level() < trust.LevelTrusted {
			requiredTraveler = RequireTrusted
		}
	}

	buyerMeets := buyerLevel >= requiredBuyer.Level()
	travelerMeets := travelerLevel >= requiredTraveler.Level()
	passed := buyerMeets && travelerMeets

	var reason string
	switch {
	case passed:
	case !buyerMeets && !travelerMeets:
		reason = fmt.Sprintf("Both buyer (%s) and traveler (%s) below required trust level", buyerLevel, travelerLevel)
	case !buyerMeets:
		reason = fmt.Sprintf("Buyer trust (%s) below required level (%s)", buyerLevel, requiredBuyer)
	default:
		reason = fmt.Sprintf("Traveler trust (%s) below required level (%s)", travelerLevel, requiredTraveler)
	}

	return GatingResult{
		Passed:                   passed,
		BuyerMeetsRequirement:    buyerMeets,
		TravelerMeetsRequirement: travelerMeets,
		RequiredBuyerTrust:       requiredBuyer,
		RequiredTravelerTrust:    requiredTraveler,
		ActualBuyerTrust:         buyerLevel,
		ActualTravelerTrust:      travelerLevel,
		DowngradeReason:          reason,
		IsHighValue:              isHighValue,
	}
}

// levelOf reads a score's level, treating a missing score as the floor.
func levelOf(s *trust.Score) trust.Level {
	if s == nil {
		return trust.LevelRestricted
	}
	return s.Level
}

func escrowRecommendation(policy EscrowPolicy, isHighValue, trustPassed bool) EscrowRecommendation {
	var recommended bool
	var reason string
	switch policy {
	case EscrowAlwaysRecommended:
		recommended = true
		reason = "Cross-border transactions benefit from escrow protection"
	case EscrowHighValueOnly:
		recommended = isHighValue
		if isHighValue {
			reason = "High-value item - escrow recommended"
		} else {
			reason = "Standard value - escrow optional"
		}
	case EscrowOptional:
		recommended = !trustPassed
		if trustPassed {
			reason = "Both parties trusted - escrow optional"
		} else {
			reason = "Trust requirements not met - escrow recommended"
		}
	}
	return EscrowRecommendation{Recommended: recommended, Required: false, Reason: reason, Policy: policy}
}
