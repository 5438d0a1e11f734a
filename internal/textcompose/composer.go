// Package textcompose implements C4: deterministic construction of the
// embedding text for a segment or preset from an ordered list of
// (source text, word budget) pairs, per spec.md §4.4.
package textcompose

import (
	"regexp"
	"strings"

	porterstemmer "github.com/blevesearch/go-porterstemmer"
)

// globalCap is the hard token ceiling applied after all sources are
// concatenated (spec.md §4.4 step 5).
const globalCap = 20

// stopWords is the fixed small stop-word set dropped during cleaning,
// including the audio-adjacent noise words spec.md §4.4 calls out.
var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "of": true, "in": true, "on": true,
	"at": true, "to": true, "for": true, "and": true, "or": true, "with": true,
	"is": true, "it": true, "this": true, "that": true, "by": true, "from": true,
	"sound": true, "audio": true, "recording": true, "recordings": true,
	"sounds": true,
}

var punctRegex = regexp.MustCompile(`[^a-z0-9\s]+`)
var spaceRegex = regexp.MustCompile(`\s+`)

// Source is one (text, word-budget) input to Compose, in priority order
// (most-specific first).
type Source struct {
	Text   string
	Budget int
}

// Composer builds embedding text deterministically. It is pure and
// side-effect-free except for the fixed Lemmatize decision, which per
// spec.md §9 must not change mid-run.
type Composer struct {
	Lemmatize bool
}

// New constructs a Composer. lemmatize enables optional Porter stemming
// (github.com/blevesearch/go-porterstemmer) as the lemmatizer step in
// spec.md §4.4 step 2; when false tokens pass through unchanged.
func New(lemmatize bool) *Composer {
	return &Composer{Lemmatize: lemmatize}
}

// SegmentSources builds the priority-ordered sources for a segment:
// segment description (budget 10), segmentation description (5),
// recording description (5), per spec.md §4.4.
func SegmentSources(segmentDesc, segmentationDesc, recordingDesc string) []Source {
	return []Source{
		{Text: segmentDesc, Budget: 10},
		{Text: segmentationDesc, Budget: 5},
		{Text: recordingDesc, Budget: 5},
	}
}

// PresetSources builds the priority-ordered sources for a preset: preset
// description (budget 10), effect description (5).
func PresetSources(presetDesc, effectDesc string) []Source {
	return []Source{
		{Text: presetDesc, Budget: 10},
		{Text: effectDesc, Budget: 5},
	}
}

// Compose runs the clean -> lemmatize -> budget -> concatenate -> cap
// pipeline over sources in priority order.
func (c *Composer) Compose(sources []Source) string {
	var tokens []string
	for _, src := range sources {
		cleaned := c.clean(src.Text)
		if len(cleaned) > src.Budget {
			cleaned = cleaned[:src.Budget]
		}
		tokens = append(tokens, cleaned...)
	}
	if len(tokens) > globalCap {
		tokens = tokens[:globalCap]
	}
	return strings.Join(tokens, " ")
}

// Enhance applies the same cleaning pipeline as Compose but with no
// per-source budget, for query-time text enhancement (spec.md §4.4).
func (c *Composer) Enhance(text string) string {
	tokens := c.clean(text)
	if len(tokens) > globalCap {
		tokens = tokens[:globalCap]
	}
	return strings.Join(tokens, " ")
}

// clean lowercases, strips punctuation, collapses whitespace, drops stop
// words, and optionally stems each remaining token.
func (c *Composer) clean(text string) []string {
	lower := strings.ToLower(text)
	stripped := punctRegex.ReplaceAllString(lower, " ")
	collapsed := spaceRegex.ReplaceAllString(stripped, " ")
	fields := strings.Fields(collapsed)

	out := make([]string, 0, len(fields))
	for _, tok := range fields {
		if stopWords[tok] {
			continue
		}
		if c.Lemmatize {
			tok = porterstemmer.StemString(tok)
		}
		out = append(out, tok)
	}
	return out
}
