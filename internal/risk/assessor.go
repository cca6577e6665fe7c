package risk

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/mnbara/advisory/internal/flags"
	"github.com/mnbara/advisory/internal/trust"
)

// Factor weights; they sum to 1.0.
const (
	weightItemValue    = 0.25
	weightNewUser      = 0.20
	weightCrossBorder  = 0.20
	weightTrustDiff    = 0.20
	weightItemCategory = 0.15
)

// fxRates is the static normalization table. This is deliberately not a
// live FX feed: risk tiers only need rough USD magnitudes, and a static
// table keeps the assessor deterministic. Unknown currencies pass through
// at parity.
var fxRates = map[string]float64{
	"USD": 1,
	"EUR": 1.1,
	"GBP": 1.27,
	"EGP": 0.032,
	"SAR": 0.27,
	"AED": 0.27,
}

// highRiskCountries is a placeholder denylist; populated per compliance
// guidance at deploy time.
var highRiskCountries = map[string]bool{"XX": true, "YY": true, "ZZ": true}

// highRiskCategories are matched as substrings of the item category.
var highRiskCategories = []string{"electronics", "luxury", "jewelry", "gift_cards", "cryptocurrency"}

// Assessor computes risk assessments. Stateless apart from the flag
// snapshot and clock; safe for concurrent use.
type Assessor struct {
	flags *flags.Flags
	now   func() time.Time
}

// NewAssessor creates a risk assessor gated by the given flag snapshot.
func NewAssessor(f *flags.Flags) *Assessor {
	return &Assessor{flags: f, now: time.Now}
}

// WithClock overrides the clock for deterministic tests.
func (a *Assessor) WithClock(now func() time.Time) *Assessor {
	a.now = now
	return a
}

// NormalizeToUSD converts an amount to whole USD using the static table.
func NormalizeToUSD(amount float64, currency string) float64 {
	rate, ok := fxRates[currency]
	if !ok {
		rate = 1
	}
	return math.Round(amount * rate)
}

// Assess evaluates one transaction. Returns nil when risk assessment is
// disabled by the flag gate.
func (a *Assessor) Assess(in Input) *Assessment {
	if !a.flags.Capability(flags.AICoreEnabled, flags.AIRiskAssessment) {
		return nil
	}

	var factors []Factor
	var riskFlags []Flag

	usdValue := NormalizeToUSD(in.ItemValue, in.Currency)
	f, fl := a.valueFactor(usdValue)
	factors = append(factors, f)
	riskFlags = append(riskFlags, fl...)

	f, fl = a.newUserFactor(in)
	factors = append(factors, f)
	riskFlags = append(riskFlags, fl...)

	f, fl = a.crossBorderFactor(in)
	factors = append(factors, f)
	riskFlags = append(riskFlags, fl...)

	f, fl = a.trustDifferentialFactor(in)
	factors = append(factors, f)
	riskFlags = append(riskFlags, fl...)

	f, fl = a.categoryFactor(in)
	factors = append(factors, f)
	riskFlags = append(riskFlags, fl...)

	var weighted float64
	for _, f := range factors {
		weighted += f.Score * f.Weight
	}
	score := int(math.Round(weighted))

	recommendations := make([]string, 0, len(riskFlags))
	for _, fl := range riskFlags {
		recommendations = append(recommendations, fl.Recommendation)
	}

	return &Assessment{
		RequestID:       in.RequestID,
		OverallRisk:     LevelForScore(score),
		RiskScore:       score,
		Factors:         factors,
		Flags:           riskFlags,
		Recommendations: recommendations,
		AssessedAt:      a.now(),
	}
}

// valueFactor tiers the USD value at $100/$500/$2000/$5000 and flags
// everything above $500.
func (a *Assessor) valueFactor(usdValue float64) (Factor, []Flag) {
	score := 5.0
	var fl []Flag
	switch {
	case usdValue >= 5000:
		score = 40
		fl = append(fl, Flag{
			Code:           FlagVeryHighValue,
			Severity:       LevelHigh,
			Message:        fmt.Sprintf("Item value $%.0f exceeds $5000", usdValue),
			Recommendation: "Require escrow + enhanced verification",
		})
	case usdValue >= 2000:
		score = 30
		fl = append(fl, Flag{
			Code:           FlagHighValue,
			Severity:       LevelMedium,
			Message:        fmt.Sprintf("Item value $%.0f exceeds $2000", usdValue),
			Recommendation: "Require escrow",
		})
	case usdValue >= 500:
		score = 20
		fl = append(fl, Flag{
			Code:           FlagElevatedValue,
			Severity:       LevelLow,
			Message:        fmt.Sprintf("Item value $%.0f exceeds $500", usdValue),
			Recommendation: "Recommend escrow",
		})
	case usdValue >= 100:
		score = 10
	}
	return Factor{
		Category:    "item_value",
		Score:       score,
		Weight:      weightItemValue,
		Description: fmt.Sprintf("Item value: $%.0f USD", usdValue),
	}, fl
}

// newUserFactor adds exposure for each side that is under 7 or 30 days
// old, capped at 70 combined.
func (a *Assessor) newUserFactor(in Input) (Factor, []Flag) {
	var score float64
	var fl []Flag
	if in.BuyerAccountAgeDays < 7 {
		score += 35
		fl = append(fl, Flag{
			Code:           FlagVeryNewBuyer,
			Severity:       LevelMedium,
			Message:        "Buyer account less than 7 days old",
			Recommendation: "Require phone verification",
		})
	} else if in.BuyerAccountAgeDays < 30 {
		score += 25
	}
	if in.TravelerAccountAgeDays < 7 {
		score += 35
		fl = append(fl, Flag{
			Code:           FlagVeryNewTraveler,
			Severity:       LevelMedium,
			Message:        "Traveler account less than 7 days old",
			Recommendation: "Require phone verification",
		})
	} else if in.TravelerAccountAgeDays < 30 {
		score += 25
	}
	return Factor{
		Category:    "new_user",
		Score:       math.Min(70, score),
		Weight:      weightNewUser,
		Description: fmt.Sprintf("Buyer: %dd, Traveler: %dd", in.BuyerAccountAgeDays, in.TravelerAccountAgeDays),
	}, fl
}

func (a *Assessor) crossBorderFactor(in Input) (Factor, []Flag) {
	var score float64
	var fl []Flag
	if in.OriginCountry != in.DestinationCountry {
		score = 15
		fl = append(fl, Flag{
			Code:           FlagCrossBorder,
			Severity:       LevelLow,
			Message:        fmt.Sprintf("Cross-border delivery: %s to %s", in.OriginCountry, in.DestinationCountry),
			Recommendation: "Standard cross-border flow",
		})
	}
	if highRiskCountries[in.OriginCountry] || highRiskCountries[in.DestinationCountry] {
		score += 35
		fl = append(fl, Flag{
			Code:           FlagHighRiskGeography,
			Severity:       LevelHigh,
			Message:        "High-risk country involved",
			Recommendation: "Enhanced due diligence required",
		})
	}
	return Factor{
		Category:    "cross_border",
		Score:       score,
		Weight:      weightCrossBorder,
		Description: fmt.Sprintf("%s to %s", in.OriginCountry, in.DestinationCountry),
	}, fl
}

// trustDifferentialFactor penalizes a restricted party hard, a large gap
// between the parties moderately, and otherwise tapers off as the weaker
// party's trust rises. A party without a score (trust scoring disabled)
// counts as zero, which lands in the restricted branch.
func (a *Assessor) trustDifferentialFactor(in Input) (Factor, []Flag) {
	buyerScore := scoreOf(in.BuyerTrust)
	travelerScore := scoreOf(in.TravelerTrust)
	gap := buyerScore - travelerScore
	if gap < 0 {
		gap = -gap
	}
	minTrust := buyerScore
	if travelerScore < minTrust {
		minTrust = travelerScore
	}

	var score float64
	var fl []Flag
	switch {
	case minTrust < 20:
		score = 50
		fl = append(fl, Flag{
			Code:           FlagLowTrustParty,
			Severity:       LevelHigh,
			Message:        "One party has restricted trust level",
			Recommendation: "Manual review required",
		})
	case gap > 40:
		score = 30
		fl = append(fl, Flag{
			Code:           FlagTrustGap,
			Severity:       LevelMedium,
			Message:        fmt.Sprintf("Trust gap of %d points", gap),
			Recommendation: "Consider escrow protection",
		})
	default:
		score = math.Max(0, 20-float64(minTrust)*0.2)
	}
	return Factor{
		Category:    "trust_differential",
		Score:       score,
		Weight:      weightTrustDiff,
		Description: fmt.Sprintf("Buyer: %d, Traveler: %d", buyerScore, travelerScore),
	}, fl
}

func (a *Assessor) categoryFactor(in Input) (Factor, []Flag) {
	score := 10.0
	var fl []Flag
	lower := strings.ToLower(in.ItemCategory)
	for _, c := range highRiskCategories {
		if in.ItemCategory != "" && strings.Contains(lower, c) {
			score = 40
			fl = append(fl, Flag{
				Code:           FlagHighRiskCategory,
				Severity:       LevelMedium,
				Message:        fmt.Sprintf("Category %q is high-risk", in.ItemCategory),
				Recommendation: "Apply enhanced fraud checks",
			})
			break
		}
	}
	category := in.ItemCategory
	if category == "" {
		category = "unknown"
	}
	return Factor{
		Category:    "item_category",
		Score:       score,
		Weight:      weightItemCategory,
		Description: fmt.Sprintf("Category: %s", category),
	}, fl
}

// scoreOf reads a trust score value, treating a missing score as zero.
func scoreOf(s *trust.Score) int {
	if s == nil {
		return 0
	}
	return s.Score
}
