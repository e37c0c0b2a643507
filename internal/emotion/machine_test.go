package emotion

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func testEngine() *Engine {
	return NewEngine(DefaultRules(), EngineConfig{
		IntensityFloor:   0.3,
		DecayPerMs:       0.00001,
		TriggerCooldown:  10 * time.Second,
		ScheduleCooldown: 120 * time.Second,
		ArcIdleWindow:    180 * time.Second,
	}, zerolog.Nop())
}

func TestKeywordTriggerFires(t *testing.T) {
	e := testEngine()
	start := time.Now().Add(-time.Minute)
	state := NewState(start)
	state.LastTransitionAt = start

	patch := e.Advance(state, "I'm getting sleepy, goodnight", "", start.Add(30*time.Second))
	if patch.Current == nil || *patch.Current != Sleepy {
		t.Fatalf("expected transition to sleepy, got %+v", patch)
	}
	if patch.Intensity == nil || *patch.Intensity != 0.9 {
		t.Errorf("expected intensity 0.9, got %+v", patch.Intensity)
	}
	if patch.Tone == nil || *patch.Tone != ToneComforting {
		t.Errorf("expected comforting tone, got %+v", patch.Tone)
	}
	if patch.LastTransitionAt == nil {
		t.Error("keyword transition should stamp LastTransitionAt")
	}
}

func TestKeywordTriggerScansUtteranceOnly(t *testing.T) {
	e := testEngine()
	start := time.Now().Add(-time.Minute)
	state := NewState(start)
	state.LastTransitionAt = start

	patch := e.Advance(state, "nothing triggering here", "goodnight, sleep well and rest", start.Add(30*time.Second))
	if patch.Current != nil {
		t.Errorf("trigger keywords in the reply must not transition, got %+v", patch)
	}
}

func TestKeywordTriggerCooldown(t *testing.T) {
	e := testEngine()
	start := time.Now()
	state := NewState(start)
	state.LastTransitionAt = start

	patch := e.Advance(state, "goodnight", "", start.Add(5*time.Second))
	if patch.Current != nil {
		t.Errorf("trigger within cooldown should not transition, got %+v", patch)
	}
}

func TestKeywordTriggerMostMatchesWins(t *testing.T) {
	e := testEngine()
	start := time.Now().Add(-time.Minute)
	state := NewState(start)
	state.LastTransitionAt = start

	// One melancholy keyword, two sleepy keywords.
	patch := e.Advance(state, "I feel sad and tired, time for bedtime", "", start.Add(30*time.Second))
	if patch.Current == nil || *patch.Current != Sleepy {
		t.Errorf("expected sleepy to win on match count, got %+v", patch.Current)
	}
}

func TestKeywordTriggerTieBreakFirstDefined(t *testing.T) {
	rules := &RuleSet{
		Triggers: []Trigger{
			{Name: "first", Keywords: []string{"alpha"}, Target: Happy, Intensity: 0.7},
			{Name: "second", Keywords: []string{"beta"}, Target: Melancholy, Intensity: 0.7},
		},
	}
	e := NewEngine(rules, EngineConfig{TriggerCooldown: time.Second}, zerolog.Nop())
	start := time.Now().Add(-time.Minute)
	state := NewState(start)
	state.LastTransitionAt = start

	patch := e.Advance(state, "alpha beta", "", start.Add(30*time.Second))
	if patch.Current == nil || *patch.Current != Happy {
		t.Errorf("tie should go to the first-defined trigger, got %+v", patch.Current)
	}
}

func TestScheduleTransition(t *testing.T) {
	e := testEngine()
	start := time.Now().Add(-16 * time.Minute)
	state := NewState(start)
	state.LastTransitionAt = start.Add(time.Second)

	patch := e.Advance(state, "nothing triggering here", "", time.Now())
	if patch.Current == nil || *patch.Current != Calm {
		t.Fatalf("expected scheduled calm transition, got %+v", patch.Current)
	}
}

func TestSchedulePicksLatestCrossedThreshold(t *testing.T) {
	e := testEngine()
	start := time.Now().Add(-31 * time.Minute)
	state := NewState(start)
	state.LastTransitionAt = start.Add(time.Second)

	patch := e.Advance(state, "nothing triggering here", "", time.Now())
	if patch.Current == nil || *patch.Current != Affectionate {
		t.Errorf("expected 30m entry to win, got %+v", patch.Current)
	}
}

func TestScheduleSkipsSameTarget(t *testing.T) {
	e := testEngine()
	start := time.Now().Add(-16 * time.Minute)
	state := NewState(start)
	state.Current = Calm
	state.Tone = ToneNeutral
	state.LastTransitionAt = start.Add(time.Second)

	patch := e.Advance(state, "nothing triggering here", "", time.Now())
	if patch.Current != nil && *patch.Current == Calm {
		t.Errorf("schedule should not re-enter the current emotion")
	}
}

func TestArcStepAfterIdle(t *testing.T) {
	e := testEngine()
	start := time.Now().Add(-10 * time.Minute)
	state := NewState(start)
	state.Current = Playful
	state.Tone = TonePlayful
	state.LastTransitionAt = time.Now().Add(-4 * time.Minute)

	patch := e.Advance(state, "nothing triggering here", "", time.Now())
	if patch.Current == nil || *patch.Current != Excited {
		t.Fatalf("expected arc step playful->excited, got %+v", patch.Current)
	}
	if patch.Intensity != nil {
		t.Error("arc step should leave intensity alone")
	}
}

func TestArcEndIsNoOp(t *testing.T) {
	e := testEngine()
	start := time.Now().Add(-10 * time.Minute)
	state := NewState(start)
	state.Current = Curious
	state.Tone = TonePlayful // arc ends at curious
	state.Intensity = 0.6
	state.LastTransitionAt = time.Now().Add(-4 * time.Minute)

	patch := e.Advance(state, "nothing triggering here", "", time.Now())
	if patch.Current != nil {
		t.Errorf("at arc end expected no emotion change, got %+v", patch.Current)
	}
	// Falls through to decay instead.
	if patch.Intensity == nil || *patch.Intensity >= 0.6 {
		t.Errorf("expected decay after arc no-op, got %+v", patch.Intensity)
	}
}

func TestDecayMonotonicAndFloored(t *testing.T) {
	e := testEngine()
	now := time.Now()
	state := NewState(now.Add(-time.Minute))
	state.Intensity = 0.6
	state.LastTransitionAt = now.Add(-5 * time.Second)

	patch := e.Advance(state, "hello there", "", now)
	if patch.Current != nil {
		t.Fatalf("expected decay only, got transition to %v", *patch.Current)
	}
	if patch.Intensity == nil {
		t.Fatal("expected decayed intensity")
	}
	if *patch.Intensity >= 0.6 {
		t.Errorf("decay must lower intensity, got %v", *patch.Intensity)
	}
	if patch.LastTransitionAt != nil {
		t.Error("decay must not stamp LastTransitionAt")
	}

	// A very long idle clamps to the floor and never goes below.
	state.Current = Calm // end of the neutral arc, so no arc step interferes
	state.LastTransitionAt = now.Add(-24 * time.Hour)
	patch = e.Advance(state, "hello there", "", now)
	if patch.Intensity == nil || *patch.Intensity != 0.3 {
		t.Errorf("expected floor 0.3, got %+v", patch.Intensity)
	}
}

func TestDecayNeverRaises(t *testing.T) {
	e := testEngine()
	now := time.Now()
	state := NewState(now.Add(-time.Minute))
	state.Current = Calm
	state.Intensity = 0.3 // already at the floor
	state.LastTransitionAt = now.Add(-time.Hour)

	patch := e.Advance(state, "hello there", "", now)
	if patch.Intensity != nil {
		t.Errorf("at-floor intensity should be untouched, got %+v", patch.Intensity)
	}
}

func TestKeywordBeatsSchedule(t *testing.T) {
	e := testEngine()
	start := time.Now().Add(-16 * time.Minute)
	state := NewState(start)
	state.LastTransitionAt = start.Add(time.Second)

	patch := e.Advance(state, "goodnight", "", time.Now())
	if patch.Current == nil || *patch.Current != Sleepy {
		t.Errorf("keyword trigger should outrank the schedule, got %+v", patch.Current)
	}
}

func TestPatchApply(t *testing.T) {
	now := time.Now()
	state := NewState(now.Add(-time.Minute))
	target := Happy
	intensity := 0.8
	tone := TonePlayful

	next := Patch{Current: &target, Intensity: &intensity, Tone: &tone, LastTransitionAt: &now}.Apply(state)
	if next.Current != Happy || next.Intensity != 0.8 || next.Tone != TonePlayful {
		t.Errorf("patch not applied: %+v", next)
	}
	if !next.LastTransitionAt.Equal(now) {
		t.Errorf("expected LastTransitionAt %v, got %v", now, next.LastTransitionAt)
	}

	// Empty patch leaves the state alone.
	same := Patch{}.Apply(next)
	if same != next {
		t.Errorf("empty patch changed state: %+v vs %+v", same, next)
	}
}
