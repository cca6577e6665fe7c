// Package trust implements party trust scoring for cross-border deliveries.
//
// Trust is calculated from identity verification, transaction or delivery
// history, account age, ratings, dispute record, responsiveness, and KYC
// level. Buyers and travelers use different weight vectors because the
// behaviors that matter differ by role. Scores range 0-100 and map onto
// five ordered levels from RESTRICTED to VERIFIED.
package trust

import (
	"fmt"
	"math"
	"time"

	"github.com/mnbara/advisory/internal/flags"
)

// Role identifies which side of a delivery a party is on.
type Role string

const (
	RoleBuyer    Role = "BUYER"
	RoleTraveler Role = "TRAVELER"
)

// Level represents trust bands in ascending order of trustworthiness.
// The ordinal values matter: gating and the decision matrix compare them.
type Level int

const (
	LevelRestricted Level = iota // 0-19: fresh or damaged history
	LevelNew                     // 20-39: limited track record
	LevelStandard                // 40-59: regular participant
	LevelTrusted                 // 60-79: proven track record
	LevelVerified                // 80-100: top tier
)

var levelNames = [...]string{"RESTRICTED", "NEW", "STANDARD", "TRUSTED", "VERIFIED"}

func (l Level) String() string {
	if l < LevelRestricted || l > LevelVerified {
		return "UNKNOWN"
	}
	return levelNames[l]
}

// MarshalJSON renders the level as its name, matching the wire contract.
func (l Level) MarshalJSON() ([]byte, error) {
	return []byte(`"` + l.String() + `"`), nil
}

// UnmarshalJSON parses a level name back to its ordinal.
func (l *Level) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) >= 2 && s[0] == '"' {
		s = s[1 : len(s)-1]
	}
	for i, name := range levelNames {
		if name == s {
			*l = Level(i)
			return nil
		}
	}
	return fmt.Errorf("unknown trust level %q", s)
}

// LevelForScore maps a 0-100 score onto its trust level.
func LevelForScore(score int) Level {
	switch {
	case score >= 80:
		return LevelVerified
	case score >= 60:
		return LevelTrusted
	case score >= 40:
		return LevelStandard
	case score >= 20:
		return LevelNew
	default:
		return LevelRestricted
	}
}

// MinLevel returns the lower of two levels on the ordered scale.
func MinLevel(a, b Level) Level {
	if a < b {
		return a
	}
	return b
}

// Factor is one weighted component of a trust score, kept fully
// explainable: raw value, weight, contribution, and a human sentence.
type Factor struct {
	Name         string  `json:"name"`
	Weight       float64 `json:"weight"`
	Value        float64 `json:"value"`
	Contribution float64 `json:"contribution"`
	Explanation  string  `json:"explanation"`
}

// Score is the immutable result of scoring one party.
type Score struct {
	UserID     string    `json:"userId"`
	Role       Role      `json:"role"`
	Score      int       `json:"score"`
	Level      Level     `json:"level"`
	Factors    []Factor  `json:"factors"`
	ComputedAt time.Time `json:"computedAt"`
}

// KYCLevel is the identity verification depth completed by a party.
type KYCLevel string

const (
	KYCNone     KYCLevel = "none"
	KYCBasic    KYCLevel = "basic"
	KYCEnhanced KYCLevel = "enhanced"
	KYCFull     KYCLevel = "full"
)

// Input carries the already-resolved party attributes. The profile service
// owns the entities; the scorer only ever sees values.
type Input struct {
	UserID                 string
	Role                   Role
	EmailVerified          bool
	PhoneVerified          bool
	TwoFAEnabled           bool
	TotalTransactions      int
	SuccessfulTransactions int
	AccountCreatedAt       time.Time
	AverageRating          float64
	TotalRatings           int
	DisputesRaised         int
	DisputesLost           int
	ResponseRate           float64 // 0.0-1.0
	KYCLevel               KYCLevel

	// Traveler-specific
	PassportVerified     bool
	TotalDeliveries      int
	SuccessfulDeliveries int
	OnTimeDeliveries     int
}

// weights per role; each vector sums to 1.0.
type weights struct {
	identity float64
	payment  float64 // buyer: payment history
	delivery float64 // traveler: delivery success
	onTime   float64 // traveler only
	age      float64
	rating   float64 // traveler only
	dispute  float64
	response float64 // buyer only
	kyc      float64
}

// Payment history carries the buyer's completion record too, so its weight
// covers both concerns. Each vector sums to 1.0.
var (
	buyerWeights    = weights{identity: 0.25, payment: 0.40, age: 0.10, dispute: 0.10, response: 0.10, kyc: 0.05}
	travelerWeights = weights{identity: 0.20, delivery: 0.25, onTime: 0.15, age: 0.10, rating: 0.15, dispute: 0.10, kyc: 0.05}
)

// Scorer computes trust scores. It is stateless apart from the flag
// snapshot and clock, so one instance serves any number of goroutines.
type Scorer struct {
	flags *flags.Flags
	now   func() time.Time
}

// NewScorer creates a trust scorer gated by the given flag snapshot.
func NewScorer(f *flags.Flags) *Scorer {
	return &Scorer{flags: f, now: time.Now}
}

// WithClock overrides the clock. Used by tests to pin time-derived factors.
func (s *Scorer) WithClock(now func() time.Time) *Scorer {
	s.now = now
	return s
}

// Compute scores one party. Returns nil (not an error) when trust scoring
// is disabled; callers must treat nil as "no advice available".
func (s *Scorer) Compute(in Input) *Score {
	if !s.flags.Capability(flags.AICoreEnabled, flags.AITrustScoring) {
		return nil
	}

	now := s.now()
	var factors []Factor

	w := travelerWeights
	if in.Role == RoleBuyer {
		w = buyerWeights
	}

	factors = append(factors, s.identityFactor(in, w))
	factors = append(factors, s.historyFactors(in, w)...)
	factors = append(factors, s.ageFactor(in, w, now))
	if in.Role == RoleTraveler {
		factors = append(factors, s.ratingFactor(in, w))
	}
	factors = append(factors, s.disputeFactor(in, w))
	if in.Role == RoleBuyer {
		factors = append(factors, s.responseFactor(in, w))
	}
	factors = append(factors, s.kycFactor(in, w))

	var total float64
	for _, f := range factors {
		total += f.Contribution
	}
	score := int(math.Round(math.Min(100, math.Max(0, total))))

	return &Score{
		UserID:     in.UserID,
		Role:       in.Role,
		Score:      score,
		Level:      LevelForScore(score),
		Factors:    factors,
		ComputedAt: now,
	}
}

// identityFactor awards points per verified channel. Buyers lean on
// email/phone/2FA; travelers additionally earn a passport bonus because
// they physically carry the goods across a border.
func (s *Scorer) identityFactor(in Input, w weights) Factor {
	var value float64
	if in.EmailVerified {
		if in.Role == RoleBuyer {
			value += 30
		} else {
			value += 20
		}
	}
	if in.PhoneVerified {
		if in.Role == RoleBuyer {
			value += 40
		} else {
			value += 30
		}
	}
	if in.TwoFAEnabled {
		if in.Role == RoleBuyer {
			value += 30
		} else {
			value += 20
		}
	}
	if in.Role == RoleTraveler && in.PassportVerified {
		value += 30
	}
	return newFactor("identity_verification", w.identity, value,
		fmt.Sprintf("Email: %t, Phone: %t, 2FA: %t", in.EmailVerified, in.PhoneVerified, in.TwoFAEnabled))
}

func (s *Scorer) historyFactors(in Input, w weights) []Factor {
	if in.Role == RoleBuyer {
		var value float64
		if in.TotalTransactions > 0 {
			successRate := float64(in.SuccessfulTransactions) / float64(in.TotalTransactions)
			value = math.Round(successRate*70 + math.Min(30, float64(in.TotalTransactions)*0.5))
		}
		return []Factor{newFactor("payment_history", w.payment, value,
			fmt.Sprintf("%d/%d successful transactions", in.SuccessfulTransactions, in.TotalTransactions))}
	}

	var deliveryValue, onTimeValue float64
	if in.TotalDeliveries > 0 {
		deliveryValue = math.Round(float64(in.SuccessfulDeliveries) / float64(in.TotalDeliveries) * 100)
		onTimeValue = math.Round(float64(in.OnTimeDeliveries) / float64(in.TotalDeliveries) * 100)
	}
	return []Factor{
		newFactor("delivery_success", w.delivery, deliveryValue,
			fmt.Sprintf("%d/%d successful deliveries", in.SuccessfulDeliveries, in.TotalDeliveries)),
		newFactor("on_time_rate", w.onTime, onTimeValue,
			fmt.Sprintf("%d/%d on-time deliveries", in.OnTimeDeliveries, in.TotalDeliveries)),
	}
}

// ageFactor buckets account age in days: <7d=10, <30d=30, <90d=50,
// <180d=70, <365d=85, else 100.
func (s *Scorer) ageFactor(in Input, w weights, now time.Time) Factor {
	ageDays := int(now.Sub(in.AccountCreatedAt).Hours() / 24)
	var value float64
	switch {
	case ageDays < 7:
		value = 10
	case ageDays < 30:
		value = 30
	case ageDays < 90:
		value = 50
	case ageDays < 180:
		value = 70
	case ageDays < 365:
		value = 85
	default:
		value = 100
	}
	return newFactor("account_age", w.age, value, fmt.Sprintf("Account is %d days old", ageDays))
}

// ratingFactor maps the 1-5 star average onto 0-100; unrated travelers sit
// at a neutral 50 rather than 0.
func (s *Scorer) ratingFactor(in Input, w weights) Factor {
	value := 50.0
	if in.TotalRatings > 0 {
		value = math.Round((in.AverageRating - 1) / 4 * 100)
	}
	return newFactor("buyer_ratings", w.rating, value,
		fmt.Sprintf("Average rating: %.1f/5 from %d ratings", in.AverageRating, in.TotalRatings))
}

// disputeFactor penalizes both how often a party raises disputes and how
// often they lose the ones they raise.
func (s *Scorer) disputeFactor(in Input, w weights) Factor {
	value := 100.0
	if in.TotalTransactions > 0 {
		raisedRatio := float64(in.DisputesRaised) / float64(in.TotalTransactions)
		lostRatio := float64(in.DisputesLost) / math.Max(1, float64(in.DisputesRaised))
		value = math.Round(math.Max(0, 100-raisedRatio*200-lostRatio*30))
	}
	return newFactor("dispute_ratio", w.dispute, value,
		fmt.Sprintf("%d disputes raised, %d lost", in.DisputesRaised, in.DisputesLost))
}

func (s *Scorer) responseFactor(in Input, w weights) Factor {
	value := math.Round(in.ResponseRate * 100)
	return newFactor("response_rate", w.response, value,
		fmt.Sprintf("%d%% response rate", int(value)))
}

func (s *Scorer) kycFactor(in Input, w weights) Factor {
	var value float64
	switch in.KYCLevel {
	case KYCBasic:
		value = 40
	case KYCEnhanced:
		value = 70
	case KYCFull:
		value = 100
	}
	return newFactor("kyc_level", w.kyc, value, fmt.Sprintf("KYC level: %s", in.KYCLevel))
}

func newFactor(name string, weight, value float64, explanation string) Factor {
	return Factor{
		Name:         name,
		Weight:       weight,
		Value:        value,
		Contribution: value * weight,
		Explanation:  explanation,
	}
}
