package emotion

// Label is one emotion from the fixed taxonomy.
type Label string

const (
	Happy        Label = "happy"
	Excited      Label = "excited"
	Curious      Label = "curious"
	Affectionate Label = "affectionate"
	Playful      Label = "playful"
	Melancholy   Label = "melancholy"
	Sleepy       Label = "sleepy"
	Calm         Label = "calm"
	Neutral      Label = "neutral"
)

// Tone is the conversational register a session settles into. It
// selects which mood arc the session drifts along.
type Tone string

const (
	TonePlayful    Tone = "playful"
	ToneRomantic   Tone = "romantic"
	ToneDeep       Tone = "deep"
	ToneComforting Tone = "comforting"
	ToneNeutral    Tone = "neutral"
)

// DefaultEnergy is the mid-range energy used when classification
// degrades.
const DefaultEnergy = 0.5

// energyTable maps each label to a fixed presentation energy. The
// values drive voice modulation and the UI meter; they are hard-coded,
// not learned.
var energyTable = map[Label]float64{
	Happy:        0.8,
	Excited:      0.95,
	Curious:      0.65,
	Affectionate: 0.6,
	Playful:      0.85,
	Melancholy:   0.3,
	Sleepy:       0.15,
	Calm:         0.35,
	Neutral:      0.5,
}

// AllLabels returns the taxonomy in a stable order.
func AllLabels() []Label {
	return []Label{
		Happy, Excited, Curious, Affectionate, Playful,
		Melancholy, Sleepy, Calm, Neutral,
	}
}

// Valid reports whether l is part of the taxonomy.
func (l Label) Valid() bool {
	_, ok := energyTable[l]
	return ok
}

// Energy returns the fixed energy value for the label, or DefaultEnergy
// for anything outside the taxonomy.
func (l Label) Energy() float64 {
	if e, ok := energyTable[l]; ok {
		return e
	}
	return DefaultEnergy
}

// Coerce maps any string onto the taxonomy, falling back to Neutral.
func Coerce(s string) Label {
	l := Label(s)
	if l.Valid() {
		return l
	}
	return Neutral
}
