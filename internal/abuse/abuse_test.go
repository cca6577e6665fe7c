package abuse

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mnbara/advisory/internal/flags"
)

var baseTime = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

// testClock is a manually advanced clock.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock { return &testClock{now: baseTime} }

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testGuard() (*Guard, *testClock) {
	clock := newTestClock()
	g := NewGuard(flags.AllEnabled()).WithClock(clock.Now)
	return g, clock
}

func TestCheckOfferFlooding_SixthCheckRejected(t *testing.T) {
	g, clock := testGuard()

	// maxPerMinute is 5: five checks pass, the sixth within the same
	// minute is rejected with a reason naming the exceeded limit.
	for i := 0; i < 5; i++ {
		res := g.CheckOfferFlooding("user-1", "1.2.3.4")
		if !res.Allowed {
			t.Fatalf("check %d should be allowed: %+v", i+1, res)
		}
		clock.Advance(time.Second)
	}
	res := g.CheckOfferFlooding("user-1", "1.2.3.4")
	if res.Allowed {
		t.Fatal("6th check within 60s should be rejected")
	}
	if !strings.Contains(res.Reason, "exceeded") {
		t.Errorf("reason %q should contain 'exceeded'", res.Reason)
	}
	if len(res.Suggestions) == 0 {
		t.Error("rejection must carry suggestions")
	}
	if res.CooldownUntil == nil {
		t.Error("rejection should set a cooldown")
	}
}

func TestCheckOfferFlooding_WarningBeforeLimit(t *testing.T) {
	g, clock := testGuard()

	// Warning threshold is floor(5*0.8) = 4: the 4th and 5th checks are
	// admitted with a warning attached.
	var warnings int
	for i := 0; i < 5; i++ {
		res := g.CheckOfferFlooding("user-1", "1.2.3.4")
		if !res.Allowed {
			t.Fatalf("check %d should be allowed", i+1)
		}
		if res.Warning != "" {
			warnings++
		}
		clock.Advance(time.Second)
	}
	if warnings != 2 {
		t.Errorf("expected warnings on checks 4 and 5, got %d warnings", warnings)
	}
}

func TestCheckOfferFlooding_CooldownRejectsWithoutCounting(t *testing.T) {
	g, clock := testGuard()

	for i := 0; i < 6; i++ {
		g.CheckOfferFlooding("user-1", "1.2.3.4")
	}
	// In cooldown: rejected, and the attempt is not recorded.
	res := g.CheckOfferFlooding("user-1", "1.2.3.4")
	if res.Allowed {
		t.Fatal("check during cooldown should be rejected")
	}
	if res.Reason == "" || len(res.Suggestions) == 0 {
		t.Error("cooldown rejection must carry reason and suggestions")
	}

	// offerFlooding cooldown is 10 minutes. After it expires, and with
	// the old timestamps outside the minute window, checks pass again.
	clock.Advance(11 * time.Minute)
	res = g.CheckOfferFlooding("user-1", "1.2.3.4")
	if !res.Allowed {
		t.Errorf("check after cooldown expiry should be allowed: %+v", res)
	}
}

func TestCheckIntentSpam_HigherThresholds(t *testing.T) {
	g, clock := testGuard()

	// intentSpam allows 10 per minute.
	for i := 0; i < 10; i++ {
		res := g.CheckIntentSpam("user-1", "1.2.3.4")
		if !res.Allowed {
			t.Fatalf("check %d should be allowed", i+1)
		}
		clock.Advance(time.Second)
	}
	if res := g.CheckIntentSpam("user-1", "1.2.3.4"); res.Allowed {
		t.Error("11th intent check within 60s should be rejected")
	}
}

func TestCheckActivity_HourlyLimit(t *testing.T) {
	clock := newTestClock()
	thresholds := DefaultThresholds
	thresholds.IntentSpam = WindowThresholds{MaxPerMinute: 1000, MaxPerHour: 20, CooldownMinutes: 5}
	g := NewGuardWithThresholds(flags.AllEnabled(), thresholds).WithClock(clock.Now)

	// Spread checks so the minute window never trips but the hour does.
	for i := 0; i < 20; i++ {
		res := g.CheckIntentSpam("user-1", "1.2.3.4")
		if !res.Allowed {
			t.Fatalf("check %d should be allowed: %+v", i+1, res)
		}
		clock.Advance(2 * time.Minute)
	}
	res := g.CheckIntentSpam("user-1", "1.2.3.4")
	if res.Allowed {
		t.Fatal("21st check within the hour should be rejected")
	}
	if !strings.Contains(res.Reason, "Hourly") {
		t.Errorf("reason %q should name the hourly limit", res.Reason)
	}
}

func TestCheckActivity_KeysAreIndependent(t *testing.T) {
	g, _ := testGuard()
	for i := 0; i < 6; i++ {
		g.CheckOfferFlooding("user-1", "1.2.3.4")
	}
	if res := g.CheckOfferFlooding("user-2", "1.2.3.4"); !res.Allowed {
		t.Error("different actor should not share the limit")
	}
	if res := g.CheckOfferFlooding("user-1", "5.6.7.8"); !res.Allowed {
		t.Error("different IP should not share the limit")
	}
}

func TestCheckActivity_DisabledAllows(t *testing.T) {
	g := NewGuard(flags.New(nil))
	for i := 0; i < 100; i++ {
		if res := g.CheckOfferFlooding("user-1", "1.2.3.4"); !res.Allowed {
			t.Fatal("disabled guard must allow everything")
		}
	}
}

func TestCheckCorridorVolume_CapAtomicityOfEffect(t *testing.T) {
	clock := newTestClock()
	thresholds := DefaultThresholds
	thresholds.CorridorVolume = VolumeThresholds{MaxDailyVolumeUSD: 1000, MaxDailyTransactions: 500, WarningThresholdPercent: 80}
	g := NewGuardWithThresholds(flags.AllEnabled(), thresholds).WithClock(clock.Now)

	if res := g.CheckCorridorVolume("US_EG", 900); !res.Allowed {
		t.Fatalf("first 900 should be admitted: %+v", res)
	}
	res := g.CheckCorridorVolume("US_EG", 200)
	if res.Allowed {
		t.Fatal("projected 1100 against cap 1000 should be rejected")
	}
	if res.Reason == "" || len(res.Suggestions) == 0 {
		t.Error("cap rejection must carry reason and suggestions")
	}

	status := g.CorridorVolumeStatus("US_EG")
	if status.VolumeUSD != 900 {
		t.Errorf("stored volume after rejected check = %v, want 900", status.VolumeUSD)
	}
	if status.TransactionCount != 1 {
		t.Errorf("stored count after rejected check = %d, want 1", status.TransactionCount)
	}
}

func TestCorridorVolumeStatus_ZeroCap(t *testing.T) {
	clock := newTestClock()
	thresholds := DefaultThresholds
	thresholds.CorridorVolume = VolumeThresholds{MaxDailyVolumeUSD: 0, MaxDailyTransactions: 0, WarningThresholdPercent: 80}
	g := NewGuardWithThresholds(flags.AllEnabled(), thresholds).WithClock(clock.Now)

	status := g.CorridorVolumeStatus("US_EG")
	if status.PercentUsed != 0 {
		t.Errorf("percentUsed with a zero cap = %d, want 0", status.PercentUsed)
	}
	if status.RemainingVolumeUSD != 0 || status.RemainingTransactions != 0 {
		t.Errorf("zero caps leave no headroom: %+v", status)
	}
}

func TestCheckCorridorVolume_TransactionCountCap(t *testing.T) {
	clock := newTestClock()
	thresholds := DefaultThresholds
	thresholds.CorridorVolume = VolumeThresholds{MaxDailyVolumeUSD: 1e9, MaxDailyTransactions: 3, WarningThresholdPercent: 80}
	g := NewGuardWithThresholds(flags.AllEnabled(), thresholds).WithClock(clock.Now)

	for i := 0; i < 3; i++ {
		if res := g.CheckCorridorVolume("US_EG", 10); !res.Allowed {
			t.Fatalf("transaction %d should be admitted", i+1)
		}
	}
	if res := g.CheckCorridorVolume("US_EG", 10); res.Allowed {
		t.Error("4th transaction against cap 3 should be rejected")
	}
}

func TestCheckCorridorVolume_WarningNearCap(t *testing.T) {
	clock := newTestClock()
	thresholds := DefaultThresholds
	thresholds.CorridorVolume = VolumeThresholds{MaxDailyVolumeUSD: 1000, MaxDailyTransactions: 500, WarningThresholdPercent: 80}
	g := NewGuardWithThresholds(flags.AllEnabled(), thresholds).WithClock(clock.Now)

	res := g.CheckCorridorVolume("US_EG", 850)
	if !res.Allowed {
		t.Fatal("850 against 1000 should be admitted")
	}
	if !strings.Contains(res.Warning, "Approaching") {
		t.Errorf("85%% usage should warn, got %+v", res)
	}
}

func TestCheckCorridorVolume_ConcurrentChecksRespectCap(t *testing.T) {
	clock := newTestClock()
	thresholds := DefaultThresholds
	thresholds.CorridorVolume = VolumeThresholds{MaxDailyVolumeUSD: 1000, MaxDailyTransactions: 500, WarningThresholdPercent: 80}
	g := NewGuardWithThresholds(flags.AllEnabled(), thresholds).WithClock(clock.Now)

	var wg sync.WaitGroup
	admitted := make(chan float64, 100)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if res := g.CheckCorridorVolume("US_EG", 90); res.Allowed {
				admitted <- 90
			}
		}()
	}
	wg.Wait()
	close(admitted)

	var total float64
	for v := range admitted {
		total += v
	}
	if total > 1000 {
		t.Errorf("admitted volume %v exceeds the cap under concurrency", total)
	}
	status := g.CorridorVolumeStatus("US_EG")
	if status.VolumeUSD != total {
		t.Errorf("stored volume %v disagrees with admitted total %v", status.VolumeUSD, total)
	}
}

func TestCheckCorridorVolume_DisabledAllows(t *testing.T) {
	g := NewGuard(flags.New(nil))
	if res := g.CheckCorridorVolume("US_EG", 1e12); !res.Allowed {
		t.Error("disabled caps must allow everything")
	}
}

func TestCorridorVolumeStatus_Empty(t *testing.T) {
	g, _ := testGuard()
	status := g.CorridorVolumeStatus("US_EG")
	if status.VolumeUSD != 0 || status.TransactionCount != 0 {
		t.Errorf("empty corridor status = %+v", status)
	}
	if status.RemainingVolumeUSD != DefaultThresholds.CorridorVolume.MaxDailyVolumeUSD {
		t.Errorf("remaining volume = %v", status.RemainingVolumeUSD)
	}
	if status.PercentUsed != 0 {
		t.Errorf("percentUsed = %d, want 0", status.PercentUsed)
	}
}

func TestSweep_EvictsIdleKeysKeepsCooldowns(t *testing.T) {
	g, clock := testGuard()

	// Trip user-1 into cooldown, give user-2 ordinary activity.
	for i := 0; i < 6; i++ {
		g.CheckOfferFlooding("user-1", "1.2.3.4")
	}
	g.CheckOfferFlooding("user-2", "1.2.3.4")

	// Past the horizon all timestamps age out; user-2 is evicted, user-1's
	// cooldown has also expired by then so it goes too.
	clock.Advance(2 * time.Hour)
	g.Sweep()

	g.activityMu.Lock()
	remaining := len(g.activity)
	g.activityMu.Unlock()
	if remaining != 0 {
		t.Errorf("sweep should evict all idle keys, %d left", remaining)
	}
}

func TestSweep_KeepsActiveCooldown(t *testing.T) {
	g, clock := testGuard()
	for i := 0; i < 6; i++ {
		g.CheckOfferFlooding("user-1", "1.2.3.4")
	}
	// 5 minutes in: timestamps are still inside the horizon and the
	// 10-minute cooldown is active.
	clock.Advance(5 * time.Minute)
	g.Sweep()
	if res := g.CheckOfferFlooding("user-1", "1.2.3.4"); res.Allowed {
		t.Error("cooldown must survive a sweep")
	}
}

func TestSweep_DropsStaleVolumeDays(t *testing.T) {
	g, clock := testGuard()
	g.CheckCorridorVolume("US_EG", 100)

	clock.Advance(25 * time.Hour)
	g.Sweep()

	status := g.CorridorVolumeStatus("US_EG")
	if status.VolumeUSD != 0 {
		t.Errorf("yesterday's volume should not leak into today: %+v", status)
	}
}

func TestConcurrentActivityChecks(t *testing.T) {
	g, _ := testGuard()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			g.CheckIntentSpam("user-1", "1.2.3.4")
			g.CheckOfferFlooding("user-2", "9.9.9.9")
			g.Sweep()
		}(i)
	}
	wg.Wait()
	// No assertion beyond absence of data races; run with -race.
}
