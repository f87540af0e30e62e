package service

import (
	"sync"
	"testing"
	"time"
)

func testBreaker() (*Breaker, *time.Time) {
	b := NewBreaker(BreakerConfig{
		FailureThreshold: 3,
		ResetTimeout:     30 * time.Second,
		HalfOpenMax:      2,
	})
	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return now }
	return b, &now
}

func TestBreaker_StartsClosed(t *testing.T) {
	b, _ := testBreaker()
	if b.State() != BreakerClosed {
		t.Errorf("initial state = %s, want closed", b.State())
	}
	if !b.Allow() {
		t.Error("closed breaker should allow requests")
	}
}

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	b, _ := testBreaker()

	b.RecordFailure()
	b.RecordFailure()
	if b.State() != BreakerClosed {
		t.Fatalf("state after 2 failures = %s, want closed", b.State())
	}

	b.RecordFailure()
	if b.State() != BreakerOpen {
		t.Fatalf("state after 3 failures = %s, want open", b.State())
	}
	if b.Allow() {
		t.Error("open breaker should deny requests before the reset timeout")
	}
}

func TestBreaker_SuccessResetsFailureStreak(t *testing.T) {
	b, _ := testBreaker()

	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()
	b.RecordFailure()

	if b.State() != BreakerClosed {
		t.Errorf("interleaved successes should reset the streak, state = %s", b.State())
	}
}

func TestBreaker_HalfOpenAfterResetTimeout(t *testing.T) {
	b, now := testBreaker()

	for range 3 {
		b.RecordFailure()
	}
	*now = now.Add(29 * time.Second)
	if b.Allow() {
		t.Fatal("breaker should stay open before the reset timeout")
	}

	*now = now.Add(2 * time.Second)
	if !b.Allow() {
		t.Fatal("breaker should admit a trial request after the reset timeout")
	}
	if b.State() != BreakerHalfOpen {
		t.Errorf("state = %s, want half_open", b.State())
	}
}

func TestBreaker_HalfOpenLimitsTrials(t *testing.T) {
	b, now := testBreaker()

	for range 3 {
		b.RecordFailure()
	}
	*now = now.Add(31 * time.Second)

	if !b.Allow() {
		t.Fatal("first trial should be admitted")
	}
	if !b.Allow() {
		t.Fatal("second trial should be admitted (halfOpenMax=2)")
	}
	if b.Allow() {
		t.Error("third concurrent trial should be denied while half-open")
	}
}

func TestBreaker_HalfOpenClosesAfterSuccesses(t *testing.T) {
	b, now := testBreaker()

	for range 3 {
		b.RecordFailure()
	}
	*now = now.Add(31 * time.Second)
	b.Allow()

	b.RecordSuccess()
	if b.State() != BreakerHalfOpen {
		t.Fatalf("one success should not close the breaker, state = %s", b.State())
	}
	b.RecordSuccess()
	if b.State() != BreakerClosed {
		t.Errorf("state after halfOpenMax successes = %s, want closed", b.State())
	}
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	b, now := testBreaker()

	for range 3 {
		b.RecordFailure()
	}
	*now = now.Add(31 * time.Second)
	b.Allow()
	b.RecordSuccess()

	b.RecordFailure()
	if b.State() != BreakerOpen {
		t.Fatalf("any half-open failure should reopen, state = %s", b.State())
	}

	// The reopened breaker needs a full reset timeout again.
	if b.Allow() {
		t.Error("reopened breaker should deny requests")
	}
	*now = now.Add(31 * time.Second)
	if !b.Allow() {
		t.Error("reopened breaker should probe again after another timeout")
	}
}

func TestBreaker_StateChangeHook(t *testing.T) {
	b, now := testBreaker()

	var transitions []string
	b.OnStateChange(func(from, to BreakerState) {
		transitions = append(transitions, from.String()+"->"+to.String())
	})

	for range 3 {
		b.RecordFailure()
	}
	*now = now.Add(31 * time.Second)
	b.Allow()
	b.RecordSuccess()
	b.RecordSuccess()

	want := []string{"closed->open", "open->half_open", "half_open->closed"}
	if len(transitions) != len(want) {
		t.Fatalf("transitions = %v, want %v", transitions, want)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("transition[%d] = %s, want %s", i, transitions[i], want[i])
		}
	}
}

func TestBreaker_ConcurrentRecords(t *testing.T) {
	b, _ := testBreaker()

	var wg sync.WaitGroup
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.Allow()
			b.RecordFailure()
			b.RecordSuccess()
		}()
	}
	wg.Wait()

	// No assertion on the final state (ordering is nondeterministic);
	// the test exists to fail under -race if the lock discipline breaks.
	_ = b.State()
}
