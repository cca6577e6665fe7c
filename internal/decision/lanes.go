package decision

import (
	"fmt"

	"github.com/mnbara/advisory/internal/corridor"
	"github.com/mnbara/advisory/internal/flags"
	"github.com/mnbara/advisory/internal/risk"
)

// LaneOption is one user-selectable choice in a recommendation lane.
type LaneOption struct {
	Action            Action     `json:"action"`
	Label             string     `json:"label"`
	Description       string     `json:"description"`
	RiskLevel         risk.Level `json:"riskLevel"`
	Conditions        []string   `json:"conditions"`
	UserChoiceAllowed bool       `json:"userChoiceAllowed"`
}

// Lanes groups the recommendation with safer and riskier alternatives,
// each one transparent about why. The user always chooses; no lane is
// ever auto-selected.
type Lanes struct {
	Recommended       []LaneOption `json:"recommended"`
	SaferAlternatives []LaneOption `json:"saferAlternatives"`
	HigherRiskAllowed []LaneOption `json:"higherRiskAllowed"`
	WhyRecommended    []string     `json:"whyRecommended"`
}

// BuildLanes expands a recommendation into display lanes. Returns empty
// lanes (not nil) when corridor advisory is disabled so UI rendering
// stays total.
func BuildLanes(f *flags.Flags, ca *corridor.Assessment, ra *risk.Assessment, rec *Recommendation) Lanes {
	if !f.Enabled(flags.CorridorAIAdvisory) {
		return Lanes{
			Recommended:       []LaneOption{},
			SaferAlternatives: []LaneOption{},
			HigherRiskAllowed: []LaneOption{},
			WhyRecommended:    []string{},
		}
	}

	lanes := Lanes{
		Recommended:       []LaneOption{},
		SaferAlternatives: []LaneOption{},
		HigherRiskAllowed: []LaneOption{},
		WhyRecommended:    whyRecommended(ca, ra),
	}

	conditions := make([]string, 0, len(rec.Reasoning))
	for _, s := range rec.Reasoning {
		conditions = append(conditions, s.Evaluation)
	}
	lanes.Recommended = append(lanes.Recommended, LaneOption{
		Action:            rec.Action,
		Label:             actionLabel(rec.Action),
		Description:       actionDescription(rec.Action, ca.CorridorName),
		RiskLevel:         ra.OverallRisk,
		Conditions:        conditions,
		UserChoiceAllowed: true,
	})

	if rec.Action != ActionProceedWithEscrow && rec.Action != ActionDecline {
		lanes.SaferAlternatives = append(lanes.SaferAlternatives, LaneOption{
			Action:            ActionProceedWithEscrow,
			Label:             "Use Escrow Protection",
			Description:       "Funds held securely until delivery confirmed",
			RiskLevel:         risk.LevelLow,
			Conditions:        []string{"Payment protected", "Delivery verification required"},
			UserChoiceAllowed: true,
		})
	}
	if rec.Action == ActionProceed {
		lanes.SaferAlternatives = append(lanes.SaferAlternatives, LaneOption{
			Action:            ActionRequireVerification,
			Label:             "Request Additional Verification",
			Description:       "Ask traveler for identity or delivery proof",
			RiskLevel:         risk.LevelMinimal,
			Conditions:        []string{"Extra verification step", "Higher confidence"},
			UserChoiceAllowed: true,
		})
	}

	if rec.Action != ActionProceed && rec.Action != ActionDecline {
		lanes.HigherRiskAllowed = append(lanes.HigherRiskAllowed, LaneOption{
			Action:            ActionProceed,
			Label:             "Proceed Without Protection",
			Description:       "Continue without escrow or additional verification",
			RiskLevel:         risk.LevelHigh,
			Conditions:        []string{"User accepts full risk", "No protection"},
			UserChoiceAllowed: true,
		})
	}

	return lanes
}

func whyRecommended(ca *corridor.Assessment, ra *risk.Assessment) []string {
	var reasons []string

	if ca.TrustGating.Passed {
		reasons = append(reasons, fmt.Sprintf("Both parties meet trust requirements (Buyer: %s, Traveler: %s)",
			ca.TrustGating.ActualBuyerTrust, ca.TrustGating.ActualTravelerTrust))
	} else {
		reasons = append(reasons, "Trust requirements not fully met: "+ca.TrustGating.DowngradeReason)
	}

	reasons = append(reasons, fmt.Sprintf("Overall risk assessed as %s (score: %d/100)", ra.OverallRisk, ra.RiskScore))

	if ca.IsSupported {
		reasons = append(reasons, fmt.Sprintf("%s is a supported corridor with %s value band", ca.CorridorName, ca.ValueBand.Label))
	}
	if ca.EscrowRecommendation.Recommended {
		reasons = append(reasons, "Escrow recommended: "+ca.EscrowRecommendation.Reason)
	}
	for _, fl := range ra.Flags {
		reasons = append(reasons, fl.Code+": "+fl.Message)
	}
	return reasons
}

func actionLabel(a Action) string {
	switch a {
	case ActionProceed:
		return "Proceed"
	case ActionProceedWithEscrow:
		return "Proceed with Escrow"
	case ActionRequireVerification:
		return "Verify First"
	case ActionManualReview:
		return "Request Review"
	default:
		return "Not Recommended"
	}
}

func actionDescription(a Action, corridorName string) string {
	switch a {
	case ActionProceed:
		return "Transaction can proceed with standard flow"
	case ActionProceedWithEscrow:
		return fmt.Sprintf("Escrow protection recommended for %s", corridorName)
	case ActionRequireVerification:
		return "Additional verification needed before proceeding"
	case ActionManualReview:
		return "This transaction requires manual review"
	default:
		return "This transaction is not recommended at this time"
	}
}
