// Package corridor holds per-trade-lane policy and the corridor trust gate.
//
// A corridor is a configured origin-to-destination lane (for example US to
// Egypt) with its own customs multiplier, value and delivery-window bands,
// minimum trust requirements, escrow policy, and restricted-item list. The
// gate layers those requirements on top of trust scores, with a
// non-bypassable uplift to TRUSTED for high-value transactions.
package corridor

import (
	"math"

	"github.com/mnbara/advisory/internal/trust"
)

// Requirement is a configured minimum trust bar. ANY admits everyone.
type Requirement string

const (
	RequireAny      Requirement = "ANY"
	RequireNew      Requirement = "NEW"
	RequireStandard Requirement = "STANDARD"
	RequireTrusted  Requirement = "TRUSTED"
	RequireVerified Requirement = "VERIFIED"
)

// Level returns the trust level a party must meet to satisfy the
// requirement. ANY maps to the bottom of the scale.
func (r Requirement) Level() trust.Level {
	switch r {
	case RequireVerified:
		return trust.LevelVerified
	case RequireTrusted:
		return trust.LevelTrusted
	case RequireStandard:
		return trust.LevelStandard
	case RequireNew:
		return trust.LevelNew
	default:
		return trust.LevelRestricted
	}
}

// EscrowPolicy controls when the gate recommends escrow. Escrow is only
// ever recommended, never enforced, by this subsystem.
type EscrowPolicy string

const (
	EscrowAlwaysRecommended EscrowPolicy = "ALWAYS_RECOMMENDED"
	EscrowHighValueOnly     EscrowPolicy = "HIGH_VALUE_ONLY"
	EscrowOptional          EscrowPolicy = "OPTIONAL"
)

// ValueBand maps an item value range onto a risk multiplier.
// Ranges are half-open: min <= value < max.
type ValueBand struct {
	MinValue   float64
	MaxValue   float64 // math.Inf(1) for the open-ended top band
	Multiplier float64
	Label      string
}

// DeliveryWindow maps a delivery duration range onto a risk multiplier.
// Ranges are inclusive: min <= days <= max.
type DeliveryWindow struct {
	MinDays    int
	MaxDays    int
	Multiplier float64
	Label      string
}

// TrustRequirements configures the gate for one corridor.
type TrustRequirements struct {
	HighValueThreshold float64
	MinBuyerTrust      Requirement
	MinTravelerTrust   Requirement
}

// Config is one corridor's complete policy.
type Config struct {
	ID                string
	Name              string
	Origin            string
	Destination       string
	Customs           float64
	ValueBands        []ValueBand
	DeliveryWindows   []DeliveryWindow
	TrustRequirements TrustRequirements
	EscrowPolicy      EscrowPolicy
	Restrictions      []string
}

var inf = math.Inf(1)

// corridors is the static lane table: Market 0 (US to MENA) and
// Market 1 (UK/DE/FR to MENA).
var corridors = []Config{
	{
		ID: "US_EG", Name: "United States → Egypt", Origin: "US", Destination: "EG",
		Customs: 1.2,
		ValueBands: []ValueBand{
			{0, 100, 1.0, "Low Value"},
			{100, 200, 1.1, "Standard"},
			{200, 500, 1.25, "Elevated"},
			{500, 2000, 1.5, "High Value"},
			{2000, inf, 1.9, "Very High"},
		},
		DeliveryWindows: []DeliveryWindow{
			{1, 5, 1.25, "Express"},
			{5, 12, 1.0, "Standard"},
			{12, 25, 0.9, "Economy"},
		},
		TrustRequirements: TrustRequirements{HighValueThreshold: 200, MinBuyerTrust: RequireStandard, MinTravelerTrust: RequireStandard},
		EscrowPolicy:      EscrowAlwaysRecommended,
		Restrictions:      []string{"electronics_batteries", "liquids_over_100ml", "restricted_medications"},
	},
	{
		ID: "US_AE", Name: "United States → UAE", Origin: "US", Destination: "AE",
		Customs: 1.05,
		ValueBands: []ValueBand{
			{0, 100, 1.0, "Low Value"},
			{100, 200, 1.05, "Standard"},
			{200, 500, 1.15, "Elevated"},
			{500, 2000, 1.35, "High Value"},
			{2000, inf, 1.7, "Very High"},
		},
		DeliveryWindows: []DeliveryWindow{
			{1, 4, 1.2, "Express"},
			{4, 8, 1.0, "Standard"},
			{8, 18, 0.9, "Economy"},
		},
		TrustRequirements: TrustRequirements{HighValueThreshold: 200, MinBuyerTrust: RequireStandard, MinTravelerTrust: RequireStandard},
		EscrowPolicy:      EscrowHighValueOnly,
		Restrictions:      []string{"alcohol", "pork_products", "restricted_medications"},
	},
	{
		ID: "US_SA", Name: "United States → Saudi Arabia", Origin: "US", Destination: "SA",
		Customs: 1.15,
		ValueBands: []ValueBand{
			{0, 100, 1.0, "Low Value"},
			{100, 200, 1.1, "Standard"},
			{200, 500, 1.2, "Elevated"},
			{500, 2000, 1.4, "High Value"},
			{2000, inf, 1.8, "Very High"},
		},
		DeliveryWindows: []DeliveryWindow{
			{1, 5, 1.2, "Express"},
			{5, 10, 1.0, "Standard"},
			{10, 21, 0.9, "Economy"},
		},
		TrustRequirements: TrustRequirements{HighValueThreshold: 200, MinBuyerTrust: RequireStandard, MinTravelerTrust: RequireTrusted},
		EscrowPolicy:      EscrowOptional,
		Restrictions:      []string{"alcohol", "pork_products", "religious_materials"},
	},
	{
		ID: "UK_EG", Name: "United Kingdom → Egypt", Origin: "UK", Destination: "EG",
		Customs: 1.25,
		ValueBands: []ValueBand{
			{0, 100, 1.0, "Low Value"},
			{100, 200, 1.1, "Standard"},
			{200, 500, 1.25, "Elevated"},
			{500, 2000, 1.45, "High Value"},
			{2000, inf, 1.9, "Very High"},
		},
		DeliveryWindows: []DeliveryWindow{
			{1, 5, 1.25, "Express"},
			{5, 12, 1.0, "Standard"},
			{12, 25, 0.9, "Economy"},
		},
		TrustRequirements: TrustRequirements{HighValueThreshold: 200, MinBuyerTrust: RequireTrusted, MinTravelerTrust: RequireTrusted},
		EscrowPolicy:      EscrowAlwaysRecommended,
		Restrictions:      []string{"electronics_batteries", "liquids_over_100ml", "restricted_medications"},
	},
	{
		ID: "UK_AE", Name: "United Kingdom → UAE", Origin: "UK", Destination: "AE",
		Customs: 1.05,
		ValueBands: []ValueBand{
			{0, 100, 1.0, "Low Value"},
			{100, 200, 1.05, "Standard"},
			{200, 500, 1.15, "Elevated"},
			{500, 2000, 1.35, "High Value"},
			{2000, inf, 1.7, "Very High"},
		},
		DeliveryWindows: []DeliveryWindow{
			{1, 4, 1.2, "Express"},
			{4, 8, 1.0, "Standard"},
			{8, 18, 0.9, "Economy"},
		},
		TrustRequirements: TrustRequirements{HighValueThreshold: 200, MinBuyerTrust: RequireTrusted, MinTravelerTrust: RequireTrusted},
		EscrowPolicy:      EscrowAlwaysRecommended,
		Restrictions:      []string{"alcohol", "pork_products", "restricted_medications"},
	},
	{
		ID: "DE_EG", Name: "Germany → Egypt", Origin: "DE", Destination: "EG",
		Customs: 1.3,
		ValueBands: []ValueBand{
			{0, 100, 1.0, "Low Value"},
			{100, 200, 1.1, "Standard"},
			{200, 500, 1.3, "Elevated"},
			{500, 2000, 1.5, "High Value"},
			{2000, inf, 2.0, "Very High"},
		},
		DeliveryWindows: []DeliveryWindow{
			{1, 6, 1.3, "Express"},
			{6, 14, 1.0, "Standard"},
			{14, 28, 0.85, "Economy"},
		},
		TrustRequirements: TrustRequirements{HighValueThreshold: 200, MinBuyerTrust: RequireTrusted, MinTravelerTrust: RequireTrusted},
		EscrowPolicy:      EscrowAlwaysRecommended,
		Restrictions:      []string{"electronics_batteries", "liquids_over_100ml", "restricted_medications"},
	},
	{
		ID: "FR_AE", Name: "France → UAE", Origin: "FR", Destination: "AE",
		Customs: 1.1,
		ValueBands: []ValueBand{
			{0, 100, 1.0, "Low Value"},
			{100, 200, 1.05, "Standard"},
			{200, 500, 1.2, "Elevated"},
			{500, 2000, 1.4, "High Value"},
			{2000, inf, 1.8, "Very High"},
		},
		DeliveryWindows: []DeliveryWindow{
			{1, 5, 1.2, "Express"},
			{5, 10, 1.0, "Standard"},
			{10, 21, 0.9, "Economy"},
		},
		TrustRequirements: TrustRequirements{HighValueThreshold: 200, MinBuyerTrust: RequireTrusted, MinTravelerTrust: RequireTrusted},
		EscrowPolicy:      EscrowAlwaysRecommended,
		Restrictions:      []string{"alcohol", "pork_products", "restricted_medications"},
	},
}

// Lookup finds the corridor for an origin/destination pair, or nil.
func Lookup(origin, destination string) *Config {
	for i := range corridors {
		if corridors[i].Origin == origin && corridors[i].Destination == destination {
			return &corridors[i]
		}
	}
	return nil
}

// All returns a copy of the configured corridors.
func All() []Config {
	out := make([]Config, len(corridors))
	copy(out, corridors)
	return out
}

// ValueBandFor selects the first band where min <= value < max, falling
// back to the last band when nothing matches.
func (c *Config) ValueBandFor(value float64) ValueBand {
	for _, b := range c.ValueBands {
		if value >= b.MinValue && value < b.MaxValue {
			return b
		}
	}
	return c.ValueBands[len(c.ValueBands)-1]
}

// DeliveryWindowFor selects the first window where min <= days <= max,
// falling back to the last window when nothing matches.
func (c *Config) DeliveryWindowFor(days int) DeliveryWindow {
	for _, w := range c.DeliveryWindows {
		if days >= w.MinDays && days <= w.MaxDays {
			return w
		}
	}
	return c.DeliveryWindows[len(c.DeliveryWindows)-1]
}
