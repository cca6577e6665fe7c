// Package flags holds the advisory engine's feature flag snapshot.
//
// A snapshot is loaded once from the environment at startup and passed by
// injection to every component that needs gating. There is no global
// singleton: tests construct fresh snapshots directly, production calls
// Load. The emergency kill switch forces every other flag to read as
// disabled for the lifetime of the snapshot.
package flags

import (
	"os"
	"strconv"
)

// Flag names recognized by Load. Anything else reads as false.
const (
	AICoreEnabled           = "AI_CORE_ENABLED"
	AIIntentClassification  = "AI_INTENT_CLASSIFICATION"
	AITrustScoring          = "AI_TRUST_SCORING"
	AIRiskAssessment        = "AI_RISK_ASSESSMENT"
	AIDecisionRecommend     = "AI_DECISION_RECOMMENDATIONS"
	AIAuditLogging          = "AI_AUDIT_LOGGING"
	CorridorAIAdvisory      = "CORRIDOR_AI_ADVISORY"
	// TrustGating disabled makes the corridor gate always pass, including
	// the high-value uplift that is otherwise non-bypassable. Whether that
	// escape hatch is intended operationally or is a latent policy bug is
	// an open question with the system owner; the gate records
	// GatingDisabled on its result so a bypassed pass is distinguishable.
	TrustGating         = "TRUST_GATING"
	AbuseGuardsEnabled  = "ABUSE_GUARDS_ENABLED"
	CorridorCapsEnabled = "CORRIDOR_CAPS_ENABLED"
	EmergencyDisableAll = "EMERGENCY_DISABLE_ALL"
)

var known = []string{
	AICoreEnabled,
	AIIntentClassification,
	AITrustScoring,
	AIRiskAssessment,
	AIDecisionRecommend,
	AIAuditLogging,
	CorridorAIAdvisory,
	TrustGating,
	AbuseGuardsEnabled,
	CorridorCapsEnabled,
}

// Flags is an immutable snapshot of the capability switches.
type Flags struct {
	emergency bool
	values    map[string]bool
}

// Load reads all recognized flags from the environment. Missing or
// unparseable values default to false.
func Load() *Flags {
	f := &Flags{values: make(map[string]bool, len(known))}
	f.emergency = parseBool(os.Getenv(EmergencyDisableAll))
	for _, name := range known {
		f.values[name] = parseBool(os.Getenv(name))
	}
	return f
}

// New builds a snapshot from explicit values. Intended for tests and for
// wiring defaults; unknown names are kept and readable.
func New(values map[string]bool) *Flags {
	f := &Flags{values: make(map[string]bool, len(values))}
	for name, v := range values {
		if name == EmergencyDisableAll {
			f.emergency = v
			continue
		}
		f.values[name] = v
	}
	return f
}

// AllEnabled returns a snapshot with every recognized flag on. Convenient
// default for tests exercising the full pipeline.
func AllEnabled() *Flags {
	values := make(map[string]bool, len(known))
	for _, name := range known {
		values[name] = true
	}
	return New(values)
}

// Enabled reports whether a flag is on. Pure and total: unknown names are
// false, and the emergency switch forces everything except itself to false.
func (f *Flags) Enabled(name string) bool {
	if name == EmergencyDisableAll {
		return f.emergency
	}
	if f.emergency {
		return false
	}
	return f.values[name]
}

// Capability reports whether a sub-feature is usable: both the master
// switch and the sub switch must be on.
func (f *Flags) Capability(master, sub string) bool {
	return f.Enabled(master) && f.Enabled(sub)
}

// EmergencyDisabled reports whether the kill switch is active.
func (f *Flags) EmergencyDisabled() bool {
	return f.emergency
}

func parseBool(s string) bool {
	v, err := strconv.ParseBool(s)
	return err == nil && v
}
