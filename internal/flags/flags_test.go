package flags

import "testing"

func TestEnabledDefaultsFalse(t *testing.T) {
	f := New(nil)
	if f.Enabled(AICoreEnabled) {
		t.Error("unset flag should be disabled")
	}
	if f.Enabled("SOME_UNKNOWN_FLAG") {
		t.Error("unknown flag should be disabled")
	}
}

func TestEmergencyDisableAllWins(t *testing.T) {
	f := New(map[string]bool{
		AICoreEnabled:       true,
		AITrustScoring:      true,
		TrustGating:         true,
		EmergencyDisableAll: true,
	})
	if !f.EmergencyDisabled() {
		t.Fatal("emergency switch should read as active")
	}
	for _, name := range known {
		if f.Enabled(name) {
			t.Errorf("%s should be forced off under emergency disable", name)
		}
	}
	if f.Capability(AICoreEnabled, AITrustScoring) {
		t.Error("capability should be off under emergency disable")
	}
	if !f.Enabled(EmergencyDisableAll) {
		t.Error("the emergency flag itself should still read true")
	}
}

func TestCapabilityRequiresBoth(t *testing.T) {
	cases := []struct {
		name   string
		master bool
		sub    bool
		want   bool
	}{
		{"both on", true, true, true},
		{"master off", false, true, false},
		{"sub off", true, false, false},
		{"both off", false, false, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := New(map[string]bool{
				AICoreEnabled:  tc.master,
				AITrustScoring: tc.sub,
			})
			if got := f.Capability(AICoreEnabled, AITrustScoring); got != tc.want {
				t.Errorf("Capability = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestLoadParsesEnv(t *testing.T) {
	t.Setenv(AICoreEnabled, "true")
	t.Setenv(AIRiskAssessment, "1")
	t.Setenv(TrustGating, "banana")
	f := Load()
	if !f.Enabled(AICoreEnabled) {
		t.Error("AI_CORE_ENABLED=true should parse as enabled")
	}
	if !f.Enabled(AIRiskAssessment) {
		t.Error("AI_RISK_ASSESSMENT=1 should parse as enabled")
	}
	if f.Enabled(TrustGating) {
		t.Error("unparseable value should default to disabled")
	}
}

func TestAllEnabled(t *testing.T) {
	f := AllEnabled()
	for _, name := range known {
		if !f.Enabled(name) {
			t.Errorf("%s should be enabled", name)
		}
	}
	if f.EmergencyDisabled() {
		t.Error("AllEnabled must not set the kill switch")
	}
}
