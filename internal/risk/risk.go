// Package risk implements transaction risk assessment for cross-border
// deliveries.
//
// Each transaction is evaluated against 5 weighted factors: item value,
// new-account exposure, cross-border exposure, trust differential, and
// item category. Scores range 0-100 and map onto five ordered levels from
// MINIMAL to CRITICAL. Every triggered condition additionally emits a
// named flag with a stable code so callers can react to specific hazards
// without parsing messages.
package risk

import (
	"fmt"
	"time"

	"github.com/mnbara/advisory/internal/trust"
)

// Level represents risk bands in ascending order of severity.
type Level int

const (
	LevelMinimal Level = iota
	LevelLow
	LevelMedium
	LevelHigh
	LevelCritical
)

var levelNames = [...]string{"MINIMAL", "LOW", "MEDIUM", "HIGH", "CRITICAL"}

func (l Level) String() string {
	if l < LevelMinimal || l > LevelCritical {
		return "UNKNOWN"
	}
	return levelNames[l]
}

// MarshalJSON renders the level as its name.
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
	return fmt.Errorf("unknown risk level %q", s)
}

// LevelForScore maps a 0-100 risk score onto its level.
func LevelForScore(score int) Level {
	switch {
	case score >= 80:
		return LevelCritical
	case score >= 60:
		return LevelHigh
	case score >= 40:
		return LevelMedium
	case score >= 20:
		return LevelLow
	default:
		return LevelMinimal
	}
}

// Stable flag codes emitted by the assessor.
const (
	FlagElevatedValue     = "ELEVATED_VALUE"
	FlagHighValue         = "HIGH_VALUE"
	FlagVeryHighValue     = "VERY_HIGH_VALUE"
	FlagVeryNewBuyer      = "VERY_NEW_BUYER"
	FlagVeryNewTraveler   = "VERY_NEW_TRAVELER"
	FlagCrossBorder       = "CROSS_BORDER"
	FlagHighRiskGeography = "HIGH_RISK_GEOGRAPHY"
	FlagLowTrustParty     = "LOW_TRUST_PARTY"
	FlagTrustGap          = "TRUST_GAP"
	FlagHighRiskCategory  = "HIGH_RISK_CATEGORY"
)

// Factor is one weighted component of a risk score.
type Factor struct {
	Category    string  `json:"category"`
	Score       float64 `json:"score"`
	Weight      float64 `json:"weight"`
	Description string  `json:"description"`
}

// Flag names a specific triggered hazard with an actionable recommendation.
type Flag struct {
	Code           string `json:"code"`
	Severity       Level  `json:"severity"`
	Message        string `json:"message"`
	Recommendation string `json:"recommendation"`
}

// Assessment is the immutable result of assessing one transaction.
type Assessment struct {
	RequestID       string    `json:"requestId"`
	OverallRisk     Level     `json:"overallRisk"`
	RiskScore       int       `json:"riskScore"`
	Factors         []Factor  `json:"factors"`
	Flags           []Flag    `json:"flags"`
	Recommendations []string  `json:"recommendations"`
	AssessedAt      time.Time `json:"assessedAt"`
}

// Input carries the already-resolved transaction attributes.
type Input struct {
	RequestID              string
	ItemValue              float64
	Currency               string
	BuyerTrust             *trust.Score
	TravelerTrust          *trust.Score
	OriginCountry          string
	DestinationCountry     string
	ItemCategory           string
	BuyerAccountAgeDays    int
	TravelerAccountAgeDays int
}
