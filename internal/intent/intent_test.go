package intent

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/mnbara/advisory/internal/flags"
)

var fixedNow = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

func testClassifier() *Classifier {
	return NewClassifier(flags.AllEnabled()).WithClock(func() time.Time { return fixedNow })
}

func TestClassify_AllSignalsAgree(t *testing.T) {
	got := testClassifier().Classify(Input{
		PageContext: "/request/create",
		Action:      "submit_request",
		UserRole:    "buyer",
	})
	if got == nil {
		t.Fatal("expected result")
	}
	if got.Intent != TypeRequest {
		t.Errorf("intent = %s, want REQUEST", got.Intent)
	}
	if got.Confidence != 0.9 {
		t.Errorf("confidence = %v, want 0.9", got.Confidence)
	}
	if got.ConfidenceLevel != ConfidenceHigh {
		t.Errorf("level = %s, want HIGH", got.ConfidenceLevel)
	}
	if len(got.Signals) != 3 {
		t.Errorf("signals = %d, want 3", len(got.Signals))
	}
	if !strings.Contains(got.Reasoning, "REQUEST") || !strings.Contains(got.Reasoning, "3 signals") {
		t.Errorf("reasoning = %q", got.Reasoning)
	}
}

func TestClassify_SignalTable(t *testing.T) {
	cases := []struct {
		name       string
		in         Input
		wantIntent Type
		wantConf   float64
		wantLevel  ConfidenceLevel
	}{
		{"page matches", Input{PageContext: "/matches"}, TypeBuy, 0.4, ConfidenceLow},
		{"page offers", Input{PageContext: "/offers"}, TypeBuy, 0.4, ConfidenceLow},
		{"page my-trips", Input{PageContext: "/my-trips"}, TypeTravel, 0.4, ConfidenceLow},
		{"unknown page falls back to browse", Input{PageContext: "/settings"}, TypeBrowse, 0.4, ConfidenceLow},
		{"action post_trip", Input{Action: "post_trip"}, TypeTravel, 0.35, ConfidenceLow},
		{"action view_only", Input{Action: "view_only"}, TypeBrowse, 0.35, ConfidenceLow},
		{"unknown action scores unknown", Input{Action: "teleport"}, TypeUnknown, 0.35, ConfidenceLow},
		{"traveler role", Input{UserRole: "traveler", Action: "make_offer"}, TypeTravel, 0.5, ConfidenceMedium},
		{"conflict resolves to heavier signal", Input{PageContext: "/trip/create", UserRole: "buyer"}, TypeTravel, 0.4, ConfidenceLow},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := testClassifier().Classify(tc.in)
			if got.Intent != tc.wantIntent {
				t.Errorf("intent = %s, want %s", got.Intent, tc.wantIntent)
			}
			if got.Confidence != tc.wantConf {
				t.Errorf("confidence = %v, want %v", got.Confidence, tc.wantConf)
			}
			if got.ConfidenceLevel != tc.wantLevel {
				t.Errorf("level = %s, want %s", got.ConfidenceLevel, tc.wantLevel)
			}
		})
	}
}

func TestClassify_LowEvidenceDegradesToUnknown(t *testing.T) {
	// A lone role signal scores 0.15, under the 0.25 floor.
	got := testClassifier().Classify(Input{UserRole: "buyer"})
	if got.Intent != TypeUnknown {
		t.Errorf("intent = %s, want UNKNOWN below the confidence floor", got.Intent)
	}
	if got.Confidence != 0.15 {
		t.Errorf("confidence = %v, want 0.15", got.Confidence)
	}
}

func TestClassify_NoSignals(t *testing.T) {
	got := testClassifier().Classify(Input{})
	if got.Intent != TypeUnknown {
		t.Errorf("intent = %s, want UNKNOWN", got.Intent)
	}
	if got.Confidence != 0 {
		t.Errorf("confidence = %v, want 0", got.Confidence)
	}
	if got.Signals == nil || len(got.Signals) != 0 {
		t.Errorf("signals should be empty, not nil: %+v", got.Signals)
	}
	if !strings.Contains(got.Reasoning, "0 signals") {
		t.Errorf("reasoning = %q", got.Reasoning)
	}
}

func TestClassify_ItemInteractionDoesNotScore(t *testing.T) {
	got := testClassifier().Classify(Input{ItemInteraction: "viewed_item"})
	if got.Intent != TypeUnknown || got.Confidence != 0 {
		t.Errorf("item interaction should not score: %+v", got)
	}
	if len(got.Signals) != 0 {
		t.Errorf("signals = %+v", got.Signals)
	}
}

func TestClassify_Deterministic(t *testing.T) {
	c := testClassifier()
	in := Input{PageContext: "/matches", Action: "accept_offer", UserRole: "buyer"}
	a := c.Classify(in)
	b := c.Classify(in)
	if !reflect.DeepEqual(a, b) {
		t.Errorf("classification diverged:\n%+v\n%+v", a, b)
	}
}

func TestClassify_DisabledReturnsNil(t *testing.T) {
	cases := []*flags.Flags{
		flags.New(nil),
		flags.New(map[string]bool{flags.AICoreEnabled: true}),
		flags.New(map[string]bool{flags.AIIntentClassification: true}),
		flags.New(map[string]bool{flags.AICoreEnabled: true, flags.AIIntentClassification: true, flags.EmergencyDisableAll: true}),
	}
	for i, f := range cases {
		if got := NewClassifier(f).Classify(Input{PageContext: "/matches"}); got != nil {
			t.Errorf("case %d: disabled classifier returned %+v", i, got)
		}
	}
}
