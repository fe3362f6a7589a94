package behavior

import (
	"testing"

	"github.com/pflow-xyz/go-pflow/guard"
	"github.com/pflow-xyz/go-pflow/petri"
)

func TestIsEnabledRequiresSufficientRegularInput(t *testing.T) {
	b := petri.Build().
		Place("P1", 1).
		Transition("T1", petri.Immediate).
		Arc("P1", "T1", 2)
	net := b.Done()
	tr := net.Transitions[b.TransitionID("T1")]

	ok, err := IsEnabled(net, tr, BuildVars(net, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected disabled: 1 token < weight 2")
	}
}

func TestIsEnabledInhibitorThreshold(t *testing.T) {
	b := petri.Build().
		Place("P1", 1).
		Place("P3", 0).
		Transition("T1", petri.Immediate).
		Arc("P1", "T1", 1).
		InhibitorArc("P3", "T1", 2)
	net := b.Done()
	tr := net.Transitions[b.TransitionID("T1")]
	p3 := net.Places[b.PlaceID("P3")]

	ok, err := IsEnabled(net, tr, BuildVars(net, 0))
	if err != nil || !ok {
		t.Fatalf("expected enabled at inhibitor tokens 0 < 2, got ok=%v err=%v", ok, err)
	}

	p3.Tokens = 2
	ok, err = IsEnabled(net, tr, BuildVars(net, 0))
	if err != nil || ok {
		t.Fatalf("expected disabled at inhibitor threshold tokens==weight, got ok=%v err=%v", ok, err)
	}

	p3.Tokens = 1
	ok, err = IsEnabled(net, tr, BuildVars(net, 0))
	if err != nil || !ok {
		t.Fatalf("expected enabled one below threshold, got ok=%v err=%v", ok, err)
	}
}

func TestIsEnabledSourceExemptFromRegularInput(t *testing.T) {
	b := petri.Build().
		Place("P1", 0).
		Transition("T1", petri.Immediate).
		AsSource().
		Arc("P1", "T1", 5)
	net := b.Done()
	tr := net.Transitions[b.TransitionID("T1")]

	ok, err := IsEnabled(net, tr, BuildVars(net, 0))
	if err != nil || !ok {
		t.Fatalf("expected is_source to exempt input requirement, got ok=%v err=%v", ok, err)
	}
}

func TestIsEnabledGuardFailureDisablesTransition(t *testing.T) {
	b := petri.Build().
		Transition("T1", petri.Immediate).
		WithGuard(guard.Bool(false))
	net := b.Done()
	tr := net.Transitions[b.TransitionID("T1")]

	ok, err := IsEnabled(net, tr, BuildVars(net, 0))
	if err != nil || ok {
		t.Fatalf("expected guard failure to disable, got ok=%v err=%v", ok, err)
	}
}

func TestIsEnabledGuardExpressionWithMathFunction(t *testing.T) {
	b := petri.Build().
		Place("P1", 10).
		Transition("T1", petri.Immediate).
		WithGuard(guard.Expr("sqrt(P1) > 3"))
	net := b.Done()
	tr := net.Transitions[b.TransitionID("T1")]

	ok, err := IsEnabled(net, tr, BuildVars(net, 0))
	if err != nil || !ok {
		t.Fatalf("sqrt(10) > 3 should hold, got ok=%v err=%v", ok, err)
	}

	net.Places[b.PlaceID("P1")].Tokens = 4
	ok, err = IsEnabled(net, tr, BuildVars(net, 0))
	if err != nil || ok {
		t.Fatalf("sqrt(4) > 3 should fail, got ok=%v err=%v", ok, err)
	}
}

func TestFireConsumesAndProduces(t *testing.T) {
	b := petri.Build().
		Place("P1", 5).
		Place("P2", 0).
		Transition("T1", petri.Immediate).
		Arc("P1", "T1", 2).
		Arc("T1", "P2", 1)
	net := b.Done()
	tr := net.Transitions[b.TransitionID("T1")]

	if err := Fire(net, tr, BuildVars(net, 0)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if net.Places[b.PlaceID("P1")].Tokens != 3 {
		t.Errorf("got %v, want 3", net.Places[b.PlaceID("P1")].Tokens)
	}
	if net.Places[b.PlaceID("P2")].Tokens != 1 {
		t.Errorf("got %v, want 1", net.Places[b.PlaceID("P2")].Tokens)
	}
	if tr.FiringCount != 1 {
		t.Errorf("got firing count %d, want 1", tr.FiringCount)
	}
}

func TestFireZeroWeightArcIsNoopModuloCounter(t *testing.T) {
	b := petri.Build().
		Place("P1", 5).
		Transition("T1", petri.Immediate).
		Arc("P1", "T1", 0)
	net := b.Done()
	tr := net.Transitions[b.TransitionID("T1")]

	if err := Fire(net, tr, BuildVars(net, 0)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if net.Places[b.PlaceID("P1")].Tokens != 5 {
		t.Errorf("zero-weight arc should not change tokens, got %v", net.Places[b.PlaceID("P1")].Tokens)
	}
	if tr.FiringCount != 1 {
		t.Error("firing counter should still increment on a zero-weight no-op firing")
	}
}

func TestFireIsAtomicOnArcEvaluationFailure(t *testing.T) {
	b := petri.Build().
		Place("P1", 5).
		Place("P2", 0).
		Transition("T1", petri.Immediate).
		Arc("P1", "T1", 1).
		ArcWeighted("T1", "P2", petri.Regular, guard.Expr("undefinedName"))
	net := b.Done()
	tr := net.Transitions[b.TransitionID("T1")]

	if err := Fire(net, tr, BuildVars(net, 0)); err == nil {
		t.Fatal("expected an error from the undefined-name output weight expression")
	}
	if net.Places[b.PlaceID("P1")].Tokens != 5 {
		t.Error("a failed firing must not mutate any place, including inputs evaluated before the failing arc")
	}
}

func TestContinuousContribution(t *testing.T) {
	b := petri.Build().
		Place("P1", 10).
		Place("P2", 0).
		Transition("T1", petri.Continuous).
		Arc("P1", "T1", 2).
		Arc("T1", "P2", 1)
	net := b.Done()
	tr := net.Transitions[b.TransitionID("T1")]

	delta := ContinuousContribution(net, tr, 3, 0.5, BuildVars(net, 0))
	if delta[b.PlaceID("P1")] != -3 {
		t.Errorf("got input delta %v, want -3 (rate 3 * dt 0.5 * weight 2)", delta[b.PlaceID("P1")])
	}
	if delta[b.PlaceID("P2")] != 1.5 {
		t.Errorf("got output delta %v, want 1.5 (rate 3 * dt 0.5 * weight 1)", delta[b.PlaceID("P2")])
	}
}

func TestSampleTimedDelayFixedPoint(t *testing.T) {
	tr := &petri.Transition{EarliestDelay: 2, LatestDelay: 2}
	if d := SampleTimedDelay(tr); d != 2 {
		t.Errorf("got %v, want 2 for a zero-width window", d)
	}
}

func TestSampleTimedDelayDefaultsToEarliest(t *testing.T) {
	tr := &petri.Transition{EarliestDelay: 1, LatestDelay: 5}
	if d := SampleTimedDelay(tr); d != 1 {
		t.Errorf("got %v, want earliest (1) by default", d)
	}
}

func TestSampleTimedDelayLatestPolicy(t *testing.T) {
	tr := &petri.Transition{EarliestDelay: 1, LatestDelay: 5, Policy: petri.Latest}
	if d := SampleTimedDelay(tr); d != 5 {
		t.Errorf("got %v, want latest (5)", d)
	}
}

func TestUpdateScheduleSetsAndClearsOnReEnablement(t *testing.T) {
	tr := &petri.Transition{Kind: petri.Timed, EarliestDelay: 3, LatestDelay: 3}
	vars := guard.Vars{}

	if err := UpdateSchedule(tr, 10, true, vars); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	at, ok := tr.ScheduledAt()
	if !ok || at != 13 {
		t.Fatalf("got scheduled=%v ok=%v, want 13", at, ok)
	}

	if err := UpdateSchedule(tr, 11, false, vars); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := tr.ScheduledAt(); ok {
		t.Error("expected schedule cleared on disablement")
	}

	if err := UpdateSchedule(tr, 20, true, vars); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	at, ok = tr.ScheduledAt()
	if !ok || at != 23 {
		t.Fatalf("expected resampled schedule at 23 on re-enablement, got %v ok=%v", at, ok)
	}
}

func TestDueToFire(t *testing.T) {
	tr := &petri.Transition{}
	tr.SetScheduledAt(10, true)

	if DueToFire(tr, 8, 1) {
		t.Error("scheduled time 10 should not be due at time+dt=9")
	}
	if !DueToFire(tr, 9, 1) {
		t.Error("scheduled time 10 should be due at time+dt=10")
	}
}
