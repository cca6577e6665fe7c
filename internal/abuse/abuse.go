// Package abuse implements admission control for the advisory pipeline.
//
// Two independent mechanisms share a state-machine pattern: per-actor
// sliding-window counters (intent spam, offer flooding) and per-corridor
// daily volume caps. Both throttle softly: every rejection carries a
// reason and suggestions, warnings fire before limits are hit, and
// cooldowns expire on their own. The guard never blocks silently.
package abuse

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/mnbara/advisory/internal/flags"
)

// Category selects which activity thresholds apply to a check.
type Category string

const (
	CategoryIntent Category = "intent"
	CategoryOffer  Category = "offer"
)

// WindowThresholds bound one activity category.
type WindowThresholds struct {
	MaxPerMinute    int
	MaxPerHour      int
	CooldownMinutes int
}

// VolumeThresholds bound per-corridor daily volume.
type VolumeThresholds struct {
	MaxDailyVolumeUSD       float64
	MaxDailyTransactions    int
	WarningThresholdPercent int
}

// Thresholds carries the complete guard configuration.
type Thresholds struct {
	IntentSpam     WindowThresholds
	OfferFlooding  WindowThresholds
	CorridorVolume VolumeThresholds
}

// DefaultThresholds are the production defaults.
var DefaultThresholds = Thresholds{
	IntentSpam:    WindowThresholds{MaxPerMinute: 10, MaxPerHour: 100, CooldownMinutes: 5},
	OfferFlooding: WindowThresholds{MaxPerMinute: 5, MaxPerHour: 50, CooldownMinutes: 10},
	CorridorVolume: VolumeThresholds{
		MaxDailyVolumeUSD:       50000,
		MaxDailyTransactions:    500,
		WarningThresholdPercent: 80,
	},
}

// CheckResult is the outcome of one admission check. Allowed may carry a
// warning; a rejection always carries a reason and suggestions.
type CheckResult struct {
	Allowed       bool       `json:"allowed"`
	Warning       string     `json:"warning,omitempty"`
	CooldownUntil *time.Time `json:"cooldownUntil,omitempty"`
	Reason        string     `json:"reason,omitempty"`
	Suggestions   []string   `json:"suggestions,omitempty"`
}

// activityEntry tracks one actor's recent requests in a category.
type activityEntry struct {
	timestamps    []time.Time
	warnings      int
	cooldownUntil time.Time
}

// volumeEntry tracks one corridor's admitted volume for one day.
type volumeEntry struct {
	date             string
	volumeUSD        float64
	transactionCount int
}

// VolumeStatus reports how much of a corridor's daily cap is used.
type VolumeStatus struct {
	VolumeUSD             float64 `json:"volumeUSD"`
	TransactionCount      int     `json:"transactionCount"`
	RemainingVolumeUSD    float64 `json:"remainingVolumeUSD"`
	RemainingTransactions int     `json:"remainingTransactions"`
	PercentUsed           int     `json:"percentUsed"`
}

// Guard holds the shared admission state. Each map has its own mutex so
// the sweep and concurrent checks never observe half-updated entries, and
// volume projection-plus-commit happens under one lock so two concurrent
// checks cannot both squeeze under a cap.
type Guard struct {
	flags      *flags.Flags
	thresholds Thresholds
	now        func() time.Time

	activityMu sync.Mutex
	activity   map[string]*activityEntry

	volumeMu sync.Mutex
	volume   map[string]*volumeEntry

	stop     chan struct{}
	stopOnce sync.Once
}

const (
	sweepInterval   = 5 * time.Minute
	trackingHorizon = time.Hour
)

// NewGuard creates an abuse guard with the default thresholds.
func NewGuard(f *flags.Flags) *Guard {
	return NewGuardWithThresholds(f, DefaultThresholds)
}

// NewGuardWithThresholds creates a guard with custom thresholds.
func NewGuardWithThresholds(f *flags.Flags, t Thresholds) *Guard {
	return &Guard{
		flags:      f,
		thresholds: t,
		now:        time.Now,
		activity:   make(map[string]*activityEntry),
		volume:     make(map[string]*volumeEntry),
		stop:       make(chan struct{}),
	}
}

// WithClock overrides the clock for deterministic tests.
func (g *Guard) WithClock(now func() time.Time) *Guard {
	g.now = now
	return g
}

// Start launches the background sweep. Safe to skip in tests; Sweep can
// be called directly.
func (g *Guard) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				g.Sweep()
			case <-ctx.Done():
				return
			case <-g.stop:
				return
			}
		}
	}()
}

// Stop terminates the background sweep.
func (g *Guard) Stop() {
	g.stopOnce.Do(func() { close(g.stop) })
}

// CheckIntentSpam guards intent classification requests for one actor+IP.
func (g *Guard) CheckIntentSpam(actorID, ip string) CheckResult {
	return g.checkActivity(CategoryIntent, actorID, ip, g.thresholds.IntentSpam,
		"Too many intent classification requests. Please wait before trying again.",
		[]string{"Wait for the cooldown period to end", "Reduce request frequency"},
		"Intent classification rate exceeded",
		[]string{"Reduce request frequency", "Cache intent results client-side"},
	)
}

// CheckOfferFlooding guards offer creation for one actor+IP.
func (g *Guard) CheckOfferFlooding(actorID, ip string) CheckResult {
	return g.checkActivity(CategoryOffer, actorID, ip, g.thresholds.OfferFlooding,
		"Too many offer requests. Please wait before trying again.",
		[]string{"Wait for the cooldown period to end", "Review existing offers before creating new ones"},
		"Offer creation rate exceeded",
		[]string{"Review existing offers", "Wait before creating more offers"},
	)
}

func (g *Guard) checkActivity(cat Category, actorID, ip string, t WindowThresholds,
	cooldownReason string, cooldownSuggestions []string,
	exceededPrefix string, exceededSuggestions []string) CheckResult {

	if !g.flags.Enabled(flags.AbuseGuardsEnabled) {
		return CheckResult{Allowed: true}
	}

	key := fmt.Sprintf("%s:%s:%s", cat, actorID, ip)
	now := g.now()

	g.activityMu.Lock()
	defer g.activityMu.Unlock()

	entry := g.activity[key]
	if entry == nil {
		entry = &activityEntry{}
		g.activity[key] = entry
	}

	// Active cooldown rejects without counting the attempt.
	if entry.cooldownUntil.After(now) {
		until := entry.cooldownUntil
		return CheckResult{
			Allowed:       false,
			CooldownUntil: &until,
			Reason:        cooldownReason,
			Suggestions:   cooldownSuggestions,
		}
	}

	entry.timestamps = append(entry.timestamps, now)

	minuteCount := countSince(entry.timestamps, now.Add(-time.Minute))
	if minuteCount > t.MaxPerMinute {
		entry.cooldownUntil = now.Add(time.Duration(t.CooldownMinutes) * time.Minute)
		entry.warnings++
		until := entry.cooldownUntil
		return CheckResult{
			Allowed:       false,
			CooldownUntil: &until,
			Reason:        fmt.Sprintf("%s (%d/%d per minute)", exceededPrefix, minuteCount, t.MaxPerMinute),
			Suggestions:   exceededSuggestions,
		}
	}

	hourCount := countSince(entry.timestamps, now.Add(-time.Hour))
	if hourCount > t.MaxPerHour {
		entry.cooldownUntil = now.Add(time.Duration(t.CooldownMinutes) * time.Minute)
		entry.warnings++
		until := entry.cooldownUntil
		return CheckResult{
			Allowed:       false,
			CooldownUntil: &until,
			Reason:        fmt.Sprintf("Hourly limit exceeded (%d/%d)", hourCount, t.MaxPerHour),
			Suggestions:   exceededSuggestions,
		}
	}

	if minuteCount >= int(math.Floor(float64(t.MaxPerMinute)*0.8)) {
		return CheckResult{
			Allowed: true,
			Warning: fmt.Sprintf("Approaching rate limit (%d/%d per minute)", minuteCount, t.MaxPerMinute),
		}
	}

	return CheckResult{Allowed: true}
}

// CheckCorridorVolume admits or rejects a transaction against the
// corridor's daily caps. Projection and commit happen under one lock:
// a rejected check leaves the stored totals untouched, and concurrent
// checks cannot both pass a nearly-full cap.
func (g *Guard) CheckCorridorVolume(corridorID string, transactionValueUSD float64) CheckResult {
	if !g.flags.Enabled(flags.CorridorCapsEnabled) {
		return CheckResult{Allowed: true}
	}

	t := g.thresholds.CorridorVolume
	now := g.now()
	today := now.UTC().Format("2006-01-02")
	key := corridorID + ":" + today

	g.volumeMu.Lock()
	defer g.volumeMu.Unlock()

	entry := g.volume[key]
	if entry == nil {
		entry = &volumeEntry{date: today}
		g.volume[key] = entry
	}

	projectedVolume := entry.volumeUSD + transactionValueUSD
	projectedCount := entry.transactionCount + 1

	if projectedVolume > t.MaxDailyVolumeUSD {
		return CheckResult{
			Allowed:     false,
			Reason:      fmt.Sprintf("Daily volume cap reached for corridor %s", corridorID),
			Suggestions: []string{"Try again tomorrow", "Use a different corridor", "Split into smaller transactions"},
		}
	}
	if projectedCount > t.MaxDailyTransactions {
		return CheckResult{
			Allowed:     false,
			Reason:      fmt.Sprintf("Daily transaction limit reached for corridor %s", corridorID),
			Suggestions: []string{"Try again tomorrow", "Use a different corridor"},
		}
	}

	entry.volumeUSD = projectedVolume
	entry.transactionCount = projectedCount

	warningVolume := t.MaxDailyVolumeUSD * float64(t.WarningThresholdPercent) / 100
	if projectedVolume >= warningVolume {
		percent := int(math.Round(projectedVolume / t.MaxDailyVolumeUSD * 100))
		return CheckResult{
			Allowed: true,
			Warning: fmt.Sprintf("Approaching daily volume cap for %s (%d%% used)", corridorID, percent),
		}
	}

	return CheckResult{Allowed: true}
}

// CorridorVolumeStatus reports current usage against the daily caps.
func (g *Guard) CorridorVolumeStatus(corridorID string) VolumeStatus {
	t := g.thresholds.CorridorVolume
	today := g.now().UTC().Format("2006-01-02")
	key := corridorID + ":" + today

	g.volumeMu.Lock()
	defer g.volumeMu.Unlock()

	var volumeUSD float64
	var count int
	if entry := g.volume[key]; entry != nil {
		volumeUSD = entry.volumeUSD
		count = entry.transactionCount
	}

	var percentUsed int
	if t.MaxDailyVolumeUSD > 0 {
		percentUsed = int(math.Round(volumeUSD / t.MaxDailyVolumeUSD * 100))
	}

	return VolumeStatus{
		VolumeUSD:             volumeUSD,
		TransactionCount:      count,
		RemainingVolumeUSD:    math.Max(0, t.MaxDailyVolumeUSD-volumeUSD),
		RemainingTransactions: maxInt(0, t.MaxDailyTransactions-count),
		PercentUsed:           percentUsed,
	}
}

// Sweep drops timestamps older than the tracking horizon, evicts idle
// activity keys, and discards stale volume days.
func (g *Guard) Sweep() {
	now := g.now()
	cutoff := now.Add(-trackingHorizon)

	g.activityMu.Lock()
	for key, entry := range g.activity {
		kept := entry.timestamps[:0]
		for _, ts := range entry.timestamps {
			if ts.After(cutoff) {
				kept = append(kept, ts)
			}
		}
		entry.timestamps = kept
		if len(entry.timestamps) == 0 && !entry.cooldownUntil.After(now) {
			delete(g.activity, key)
		}
	}
	g.activityMu.Unlock()

	today := now.UTC().Format("2006-01-02")
	g.volumeMu.Lock()
	for key, entry := range g.volume {
		if entry.date != today {
			delete(g.volume, key)
		}
	}
	g.volumeMu.Unlock()
}

func countSince(timestamps []time.Time, cutoff time.Time) int {
	n := 0
	for _, ts := range timestamps {
		if ts.After(cutoff) {
			n++
		}
	}
	return n
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
