package sentiment

import "strings"

// Sentiment labels attached to scored text.
const (
	LabelPositive = "positive"
	LabelNeutral  = "neutral"
	LabelNegative = "negative"
)

// Label thresholds: scores above/below this band are labeled
// positive/negative, anything in between is neutral.
const labelThreshold = 0.2

// Lexicon holds the positive and negative keyword sets used for scoring.
// It is an immutable value injected into the Analyzer so tests can
// substitute alternate lexicons.
type Lexicon struct {
	Positive []string
	Negative []string
}

// DefaultLexicon returns the built-in finance-flavored keyword sets.
func DefaultLexicon() Lexicon {
	return Lexicon{
		Positive: []string{
			"moon", "bullish", "buy", "calls", "rocket", "long",
			"undervalued", "breakout", "rally", "upgrade", "beat",
			"growth", "winner", "squeeze", "gains", "soar",
		},
		Negative: []string{
			"bearish", "sell", "puts", "short", "crash", "dump",
			"overvalued", "downgrade", "miss", "bankrupt", "fraud",
			"losses", "drop", "tank", "bagholder", "plunge",
		},
	}
}

// Result is the outcome of scoring one text blob.
type Result struct {
	Score float64 `json:"score"` // in [-1, 1]
	Label string  `json:"label"`
}

// Analyzer scores text against a fixed lexicon. It is a pure function of
// its input and safe for concurrent use.
type Analyzer struct {
	lexicon Lexicon
}

// NewAnalyzer creates an analyzer over the given lexicon.
func NewAnalyzer(lexicon Lexicon) *Analyzer {
	return &Analyzer{lexicon: lexicon}
}

// Analyze case-folds the text and counts how many distinct positive and
// negative keywords appear anywhere in it. A keyword counts once no matter
// how often it repeats. With p positive and n negative hits the score is
// (p-n)/(p+n), or 0 when neither set matches.
func (a *Analyzer) Analyze(text string) Result {
	content := strings.ToLower(text)

	positive := 0
	for _, keyword := range a.lexicon.Positive {
		if strings.Contains(content, keyword) {
			positive++
		}
	}

	negative := 0
	for _, keyword := range a.lexicon.Negative {
		if strings.Contains(content, keyword) {
			negative++
		}
	}

	if positive+negative == 0 {
		return Result{Score: 0, Label: LabelNeutral}
	}

	score := float64(positive-negative) / float64(positive+negative)
	return Result{Score: score, Label: LabelForScore(score)}
}

// LabelForScore maps a score in [-1, 1] to a sentiment label.
func LabelForScore(score float64) string {
	switch {
	case score > labelThreshold:
		return LabelPositive
	case score < -labelThreshold:
		return LabelNegative
	default:
		return LabelNeutral
	}
}
