package emotion

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Trigger is a static keyword rule. The trigger whose keyword set has
// the most matches in the lowercased utterance wins; ties go to the
// earlier-defined trigger.
type Trigger struct {
	Name      string   `yaml:"name"`
	Keywords  []string `yaml:"keywords"`
	Target    Label    `yaml:"target"`
	Intensity float64  `yaml:"intensity"`
	Tone      Tone     `yaml:"tone,omitempty"` // optional tone shift
}

// ScheduleEntry transitions the session to a target emotion once its
// duration crosses the threshold.
type ScheduleEntry struct {
	After     time.Duration `yaml:"-"`
	Target    Label         `yaml:"target"`
	Intensity float64       `yaml:"intensity"`
}

// UnmarshalYAML accepts the threshold as a duration string ("15m").
func (s *ScheduleEntry) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		After     string  `yaml:"after"`
		Target    Label   `yaml:"target"`
		Intensity float64 `yaml:"intensity"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	after, err := time.ParseDuration(raw.After)
	if err != nil {
		return fmt.Errorf("invalid schedule threshold %q: %w", raw.After, err)
	}
	s.After = after
	s.Target = raw.Target
	s.Intensity = raw.Intensity
	return nil
}

// RuleSet bundles the static configuration of the state machine:
// keyword triggers, per-tone mood arcs and the time-based schedule.
type RuleSet struct {
	Triggers []Trigger        `yaml:"triggers"`
	Arcs     map[Tone][]Label `yaml:"arcs"`
	Schedule []ScheduleEntry  `yaml:"schedule"`
}

// DefaultRules returns the compiled-in rule set used when no YAML file
// is configured.
func DefaultRules() *RuleSet {
	return &RuleSet{
		Triggers: []Trigger{
			{
				Name:      "sleepy",
				Keywords:  []string{"sleepy", "tired", "goodnight", "good night", "bedtime"},
				Target:    Sleepy,
				Intensity: 0.9,
				Tone:      ToneComforting,
			},
			{
				Name:      "affection",
				Keywords:  []string{"love you", "miss you", "cuddle", "hug"},
				Target:    Affectionate,
				Intensity: 0.9,
				Tone:      ToneRomantic,
			},
			{
				Name:      "excitement",
				Keywords:  []string{"amazing", "awesome", "great news", "so excited", "can't wait"},
				Target:    Excited,
				Intensity: 0.85,
				Tone:      TonePlayful,
			},
			{
				Name:      "melancholy",
				Keywords:  []string{"sad", "lonely", "crying", "heartbroken"},
				Target:    Melancholy,
				Intensity: 0.8,
				Tone:      ToneDeep,
			},
			{
				Name:      "playfulness",
				Keywords:  []string{"joke", "funny", "play a game", "silly"},
				Target:    Playful,
				Intensity: 0.8,
				Tone:      TonePlayful,
			},
			{
				Name:      "calm",
				Keywords:  []string{"relax", "calm", "peaceful", "breathe"},
				Target:    Calm,
				Intensity: 0.7,
				Tone:      ToneComforting,
			},
		},
		Arcs: map[Tone][]Label{
			TonePlayful:    {Playful, Excited, Happy, Curious},
			ToneRomantic:   {Affectionate, Calm, Melancholy},
			ToneDeep:       {Curious, Calm, Melancholy},
			ToneComforting: {Calm, Affectionate, Sleepy},
			ToneNeutral:    {Neutral, Curious, Calm},
		},
		Schedule: []ScheduleEntry{
			{After: 15 * time.Minute, Target: Calm, Intensity: 0.6},
			{After: 30 * time.Minute, Target: Affectionate, Intensity: 0.7},
		},
	}
}

// LoadRules reads a rule set from a YAML file, or returns the defaults
// when path is empty.
func LoadRules(path string) (*RuleSet, error) {
	if path == "" {
		return DefaultRules(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read emotion rules: %w", err)
	}

	var rules RuleSet
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("failed to parse emotion rules: %w", err)
	}
	if err := rules.Validate(); err != nil {
		return nil, err
	}
	return &rules, nil
}

// Validate checks every configured label against the taxonomy.
func (r *RuleSet) Validate() error {
	for _, t := range r.Triggers {
		if !t.Target.Valid() {
			return fmt.Errorf("trigger %q targets unknown emotion %q", t.Name, t.Target)
		}
		if len(t.Keywords) == 0 {
			return fmt.Errorf("trigger %q has no keywords", t.Name)
		}
	}
	for tone, arc := range r.Arcs {
		for _, l := range arc {
			if !l.Valid() {
				return fmt.Errorf("arc for tone %q contains unknown emotion %q", tone, l)
			}
		}
	}
	for i, s := range r.Schedule {
		if !s.Target.Valid() {
			return fmt.Errorf("schedule entry %d targets unknown emotion %q", i, s.Target)
		}
	}
	return nil
}
