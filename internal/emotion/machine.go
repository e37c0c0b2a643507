package emotion

import (
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/lumenvoice/companion-gateway/internal/observability"
)

// EngineConfig tunes the state machine's timing and decay behavior.
type EngineConfig struct {
	IntensityFloor   float64       // intensity never decays below this
	DecayPerMs       float64       // linear decay per elapsed millisecond
	TriggerCooldown  time.Duration // minimum gap between keyword transitions
	ScheduleCooldown time.Duration // minimum gap before a time-based transition
	ArcIdleWindow    time.Duration // idle time before a mood-arc step
}

// Engine advances per-session emotion state. It holds only static
// configuration; all mutable state lives in the caller's State value,
// so one engine serves every session.
type Engine struct {
	rules  *RuleSet
	cfg    EngineConfig
	logger zerolog.Logger
}

// NewEngine creates an emotion engine over the given rule set.
func NewEngine(rules *RuleSet, cfg EngineConfig, logger zerolog.Logger) *Engine {
	return &Engine{rules: rules, cfg: cfg, logger: logger}
}

// Advance evaluates one turn and returns a patch of the fields that
// changed. Transition sources are tried in precedence order: keyword
// triggers, the time-based schedule, mood-arc progression, then
// intensity decay. When two triggers match the same number of
// keywords, the first-defined trigger wins; the trigger list order is
// part of the loaded configuration.
//
// The reply is part of the per-turn contract so that reply-aware
// rules can be added without changing callers; keyword triggers scan
// only the utterance.
func (e *Engine) Advance(state State, utterance, reply string, now time.Time) Patch {
	if patch, ok := e.keywordTransition(state, utterance, now); ok {
		observability.RecordEmotionTransition("keyword")
		return patch
	}
	if patch, ok := e.scheduleTransition(state, now); ok {
		observability.RecordEmotionTransition("schedule")
		return patch
	}
	if patch, ok := e.arcTransition(state, now); ok {
		observability.RecordEmotionTransition("arc")
		return patch
	}
	return e.decay(state, now)
}

func (e *Engine) keywordTransition(state State, utterance string, now time.Time) (Patch, bool) {
	if now.Sub(state.LastTransitionAt) < e.cfg.TriggerCooldown {
		return Patch{}, false
	}

	text := strings.ToLower(utterance)
	var best *Trigger
	bestMatches := 0
	for i := range e.rules.Triggers {
		t := &e.rules.Triggers[i]
		matches := 0
		for _, kw := range t.Keywords {
			if strings.Contains(text, kw) {
				matches++
			}
		}
		// Strictly-greater keeps the first-defined trigger on ties.
		if matches > bestMatches {
			best = t
			bestMatches = matches
		}
	}
	if best == nil {
		return Patch{}, false
	}

	e.logger.Debug().
		Str("trigger", best.Name).
		Str("target", string(best.Target)).
		Int("matches", bestMatches).
		Msg("Keyword trigger fired")

	patch := Patch{
		Current:          &best.Target,
		Intensity:        &best.Intensity,
		LastTransitionAt: &now,
	}
	if best.Tone != "" {
		patch.Tone = &best.Tone
	}
	return patch, true
}

func (e *Engine) scheduleTransition(state State, now time.Time) (Patch, bool) {
	if now.Sub(state.LastTransitionAt) < e.cfg.ScheduleCooldown {
		return Patch{}, false
	}

	elapsed := now.Sub(state.SessionStartAt)
	var due *ScheduleEntry
	for i := range e.rules.Schedule {
		s := &e.rules.Schedule[i]
		if elapsed >= s.After {
			due = s // entries are ordered; keep the latest crossed threshold
		}
	}
	if due == nil || due.Target == state.Current {
		return Patch{}, false
	}

	e.logger.Debug().
		Str("target", string(due.Target)).
		Dur("session_elapsed", elapsed).
		Msg("Scheduled transition fired")

	return Patch{
		Current:          &due.Target,
		Intensity:        &due.Intensity,
		LastTransitionAt: &now,
	}, true
}

func (e *Engine) arcTransition(state State, now time.Time) (Patch, bool) {
	if now.Sub(state.LastTransitionAt) < e.cfg.ArcIdleWindow {
		return Patch{}, false
	}

	arc, ok := e.rules.Arcs[state.Tone]
	if !ok || len(arc) == 0 {
		return Patch{}, false
	}

	idx := -1
	for i, l := range arc {
		if l == state.Current {
			idx = i
			break
		}
	}

	var next Label
	switch {
	case idx == -1:
		// Current emotion is off-arc; enter the arc at its first step.
		next = arc[0]
	case idx < len(arc)-1:
		next = arc[idx+1]
	default:
		return Patch{}, false // already at the arc's last step
	}
	if next == state.Current {
		return Patch{}, false
	}

	e.logger.Debug().
		Str("tone", string(state.Tone)).
		Str("next", string(next)).
		Msg("Mood arc step")

	return Patch{
		Current:          &next,
		LastTransitionAt: &now,
	}, true
}

// decay reduces intensity linearly with elapsed time since the last
// transition. It never raises intensity and never crosses the floor,
// and does not count as a transition itself.
func (e *Engine) decay(state State, now time.Time) Patch {
	elapsedMs := float64(now.Sub(state.LastTransitionAt).Milliseconds())
	if elapsedMs <= 0 {
		return Patch{}
	}

	decayed := state.Intensity - e.cfg.DecayPerMs*elapsedMs
	if decayed < e.cfg.IntensityFloor {
		decayed = e.cfg.IntensityFloor
	}
	if decayed >= state.Intensity {
		return Patch{}
	}
	return Patch{Intensity: &decayed}
}
