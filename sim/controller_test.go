package sim

import (
	"context"
	"testing"

	"github.com/pflow-xyz/go-pflow/guard"
	"github.com/pflow-xyz/go-pflow/petri"
	"github.com/pflow-xyz/go-pflow/policy"
)

type memCollector struct {
	times    []float64
	markings []map[string]float64
}

func (m *memCollector) Record(time float64, marking map[string]float64, _ map[string]uint64) {
	m.times = append(m.times, time)
	cp := make(map[string]float64, len(marking))
	for k, v := range marking {
		cp[k] = v
	}
	m.markings = append(m.markings, cp)
}

func TestStepSingleImmediateFiring(t *testing.T) {
	b := petri.Build().
		Place("P1", 1).
		Place("P2", 0).
		Transition("T1", petri.Immediate).
		Arc("P1", "T1", 1).
		Arc("T1", "P2", 1)
	net := b.Done()
	c := New(net, policy.New(policy.Random), nil)

	fired, err := c.Step(1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !fired {
		t.Error("expected a firing")
	}
	if net.Places[b.PlaceID("P1")].Tokens != 0 {
		t.Errorf("P1 = %v, want 0", net.Places[b.PlaceID("P1")].Tokens)
	}
	if net.Places[b.PlaceID("P2")].Tokens != 1 {
		t.Errorf("P2 = %v, want 1", net.Places[b.PlaceID("P2")].Tokens)
	}
	if net.Transitions[b.TransitionID("T1")].FiringCount != 1 {
		t.Error("expected firing count 1")
	}
}

func TestStepExhaustsAllImmediatesInOneStep(t *testing.T) {
	b := petri.Build().
		Place("P1", 3).
		Place("P2", 0).
		Transition("T1", petri.Immediate).
		Arc("P1", "T1", 1).
		Arc("T1", "P2", 1)
	net := b.Done()
	c := New(net, policy.New(policy.Random), nil)

	if _, err := c.Step(1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if net.Places[b.PlaceID("P1")].Tokens != 0 {
		t.Errorf("P1 = %v, want 0", net.Places[b.PlaceID("P1")].Tokens)
	}
	if net.Places[b.PlaceID("P2")].Tokens != 3 {
		t.Errorf("P2 = %v, want 3", net.Places[b.PlaceID("P2")].Tokens)
	}
	if net.Transitions[b.TransitionID("T1")].FiringCount != 3 {
		t.Errorf("firing count = %d, want 3", net.Transitions[b.TransitionID("T1")].FiringCount)
	}
}

func TestStepArcWeight(t *testing.T) {
	b := petri.Build().
		Place("P1", 5).
		Place("P2", 0).
		Transition("T1", petri.Immediate).
		Arc("P1", "T1", 2).
		Arc("T1", "P2", 1)
	net := b.Done()
	c := New(net, policy.New(policy.Random), nil)

	if _, err := c.Step(1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if net.Places[b.PlaceID("P1")].Tokens != 1 {
		t.Errorf("P1 = %v, want 1", net.Places[b.PlaceID("P1")].Tokens)
	}
	if net.Places[b.PlaceID("P2")].Tokens != 2 {
		t.Errorf("P2 = %v, want 2", net.Places[b.PlaceID("P2")].Tokens)
	}
	if net.Transitions[b.TransitionID("T1")].FiringCount != 2 {
		t.Errorf("firing count = %d, want 2", net.Transitions[b.TransitionID("T1")].FiringCount)
	}
}

func TestStepPriorityMonopolisation(t *testing.T) {
	b := petri.Build().Place("P1", 5)
	names := []string{"Ta", "Tb", "Tc", "Td", "Te"}
	priorities := []int{100, 75, 50, 25, 0}
	for i, name := range names {
		b.Place("sink_"+name, 0).
			Transition(name, petri.Immediate).
			WithPriority(priorities[i]).
			Arc("P1", name, 1).
			Arc(name, "sink_"+name, 1)
	}
	net := b.Done()
	c := New(net, policy.New(policy.Priority), nil)

	if _, err := c.Step(1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if net.Transitions[b.TransitionID("Ta")].FiringCount != 5 {
		t.Errorf("Ta firing count = %d, want 5", net.Transitions[b.TransitionID("Ta")].FiringCount)
	}
	for _, name := range names[1:] {
		if net.Transitions[b.TransitionID(name)].FiringCount != 0 {
			t.Errorf("%s firing count = %d, want 0", name, net.Transitions[b.TransitionID(name)].FiringCount)
		}
	}
}

func TestStepGuardWithMathFunction(t *testing.T) {
	build := func(initial float64) (*petri.Net, *petri.Builder) {
		b := petri.Build().
			Place("P1", initial).
			Place("P2", 0).
			Transition("T1", petri.Immediate).
			WithGuard(guard.Expr("sqrt(P1) > 3")).
			Arc("P1", "T1", 1).
			Arc("T1", "P2", 1)
		return b.Done(), b
	}

	net, b := build(10)
	c := New(net, policy.New(policy.Random), nil)
	if _, err := c.Step(1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if net.Places[b.PlaceID("P2")].Tokens != 1 {
		t.Error("expected a fire for sqrt(10) > 3")
	}

	net2, b2 := build(4)
	c2 := New(net2, policy.New(policy.Random), nil)
	if _, err := c2.Step(1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if net2.Places[b2.PlaceID("P2")].Tokens != 0 {
		t.Error("expected no fire for sqrt(4) == 2")
	}
}

func TestStepInhibitorArc(t *testing.T) {
	b := petri.Build().
		Place("P1", 3).
		Place("P2", 0).
		Place("P3", 0).
		Transition("T1", petri.Timed).
		Timed(0, 0).
		Arc("P1", "T1", 1).
		InhibitorArc("P3", "T1", 2).
		Arc("T1", "P2", 1)
	net := b.Done()
	c := New(net, policy.New(policy.Random), nil)

	if _, err := c.Step(1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if net.Places[b.PlaceID("P1")].Tokens != 2 {
		t.Errorf("P1 = %v, want 2", net.Places[b.PlaceID("P1")].Tokens)
	}
	if net.Places[b.PlaceID("P2")].Tokens != 1 {
		t.Errorf("P2 = %v, want 1", net.Places[b.PlaceID("P2")].Tokens)
	}

	c.Reset()
	net.Places[b.PlaceID("P1")].Tokens = 3
	net.Places[b.PlaceID("P3")].Tokens = 2
	if _, err := c.Step(1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if net.Places[b.PlaceID("P1")].Tokens != 3 {
		t.Error("inhibitor at threshold should have disabled T1 — P1 must be untouched")
	}
}

func TestStepTimedTransitionFixedDelay(t *testing.T) {
	b := petri.Build().
		Place("P1", 1).
		Place("P2", 0).
		Transition("T1", petri.Timed).
		Timed(2, 2).
		Arc("P1", "T1", 1).
		Arc("T1", "P2", 1)
	net := b.Done()
	c := New(net, policy.New(policy.Random), nil)

	if _, err := c.Step(1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if net.Places[b.PlaceID("P2")].Tokens != 0 {
		t.Error("timed transition scheduled at +2 should not fire at time 1")
	}
	if _, err := c.Step(1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if net.Places[b.PlaceID("P2")].Tokens != 1 {
		t.Error("timed transition should fire once scheduled time is reached")
	}
}

func TestStepContinuousIntegration(t *testing.T) {
	b := petri.Build().
		Place("P1", 10).
		Place("P2", 0).
		Transition("T1", petri.Continuous).
		ContinuousRate(guard.Number(2)).
		Arc("P1", "T1", 1).
		Arc("T1", "P2", 1)
	net := b.Done()
	c := New(net, policy.New(policy.Random), nil)

	if _, err := c.Step(0.5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := net.Places[b.PlaceID("P1")].Tokens; got != 9 {
		t.Errorf("P1 = %v, want 9 (10 - rate 2 * dt 0.5)", got)
	}
	if got := net.Places[b.PlaceID("P2")].Tokens; got != 1 {
		t.Errorf("P2 = %v, want 1", got)
	}
}

func TestResetRestoresTokensAndCounters(t *testing.T) {
	b := petri.Build().
		Place("P1", 3).
		Place("P2", 0).
		Transition("T1", petri.Immediate).
		Arc("P1", "T1", 1).
		Arc("T1", "P2", 1)
	net := b.Done()
	c := New(net, policy.New(policy.Random), nil)
	c.Step(1)

	c.Reset()
	if net.Places[b.PlaceID("P1")].Tokens != 3 {
		t.Error("reset should restore initial tokens")
	}
	if net.Transitions[b.TransitionID("T1")].FiringCount != 0 {
		t.Error("reset should zero firing counts")
	}
	if c.CurrentTime() != 0 {
		t.Error("reset should zero simulated time")
	}
	if c.StateNow() != Idle {
		t.Error("reset should return to IDLE")
	}
}

func TestRunStopsOnCriterionAndReportsTime(t *testing.T) {
	b := petri.Build().
		Place("P1", 100).
		Place("P2", 0).
		Transition("T1", petri.Immediate).
		WithPriority(0).
		Arc("P1", "T1", 1).
		Arc("T1", "P2", 1)
	net := b.Done()
	c := New(net, policy.New(policy.Random), nil)

	done := make(chan struct{})
	c.SetCompletionCallback(func() { close(done) })

	err := c.Run(context.Background(), 1, UntilSteps(3))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	<-done
	if c.CurrentTime() != 3 {
		t.Errorf("time = %v, want 3 after 3 steps of dt=1", c.CurrentTime())
	}
	if c.StateNow() != Idle {
		t.Error("expected IDLE after Run returns")
	}
}

func TestRunCancellationStopsBetweenSteps(t *testing.T) {
	b := petri.Build().
		Place("P1", 1000000).
		Place("P2", 0).
		Transition("T1", petri.Immediate).
		Arc("P1", "T1", 1).
		Arc("T1", "P2", 1)
	net := b.Done()
	c := New(net, policy.New(policy.Random), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.Run(ctx, 1, UntilSteps(1000000)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	net := petri.NewNet()
	c := New(net, policy.New(policy.Random), nil)
	c.Stop()
	c.Stop()
}

func TestCollectorReceivesSnapshotEveryStep(t *testing.T) {
	b := petri.Build().
		Place("P1", 2).
		Place("P2", 0).
		Transition("T1", petri.Immediate).
		Arc("P1", "T1", 1).
		Arc("T1", "P2", 1)
	net := b.Done()
	mc := &memCollector{}
	c := New(net, policy.New(policy.Random), mc)

	c.Step(1)
	c.Step(1)

	if len(mc.times) != 2 {
		t.Fatalf("got %d snapshots, want 2", len(mc.times))
	}
	if mc.times[0] != 1 || mc.times[1] != 2 {
		t.Errorf("got times %v, want [1 2]", mc.times)
	}
}

func TestImmediateOverflowIsFatal(t *testing.T) {
	b := petri.Build().
		Place("P1", 1).
		Transition("T1", petri.Immediate).
		AsSource().
		AsSink()
	net := b.Done()
	c := New(net, policy.New(policy.Random), nil)

	_, err := c.Step(1)
	if err == nil {
		t.Fatal("expected an immediate-exhaustion overflow error for an always-enabled source/sink transition")
	}
	diags := c.Diagnostics()
	if len(diags) == 0 || diags[len(diags)-1].Kind != "immediate_overflow" {
		t.Error("expected an immediate_overflow diagnostic")
	}
}
