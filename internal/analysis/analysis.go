// Package analysis implements lightweight heuristic text analysis over
// notes: keyword extraction, sentiment scoring, entity spotting, and
// near-duplicate detection. Everything here is word-list and regex driven;
// no model, no network, no storage dependency.
package analysis

import (
	"regexp"
	"sort"
	"strings"
)

// Keyword is a token and its occurrence count within one text.
type Keyword struct {
	Word  string `json:"word"`
	Count int    `json:"count"`
}

// Sentiment classifies a text as positive, negative, or neutral with a
// crude score in [-1, 1].
type Sentiment struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Entity is a spotted reference: a capitalized name run, an email address,
// or a URL.
type Entity struct {
	Text string `json:"text"`
	Kind string `json:"kind"` // "name", "email", "url"
}

var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "but": true, "by": true, "for": true, "from": true,
	"has": true, "have": true, "i": true, "if": true, "in": true, "is": true,
	"it": true, "its": true, "of": true, "on": true, "or": true, "not": true,
	"that": true, "the": true, "this": true, "to": true, "was": true,
	"were": true, "will": true, "with": true, "you": true, "your": true,
}

var positiveWords = map[string]bool{
	"good": true, "great": true, "excellent": true, "useful": true,
	"fast": true, "clean": true, "simple": true, "elegant": true,
	"love": true, "nice": true, "better": true, "best": true,
	"works": true, "solved": true, "fixed": true,
}

var negativeWords = map[string]bool{
	"bad": true, "slow": true, "broken": true, "bug": true, "ugly": true,
	"hate": true, "worse": true, "worst": true, "fails": true,
	"failed": true, "confusing": true, "painful": true, "leak": true,
	"crash": true, "wrong": true,
}

var (
	tokenRe = regexp.MustCompile(`[a-zA-Z][a-zA-Z0-9_.-]*`)
	emailRe = regexp.MustCompile(`\b[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}\b`)
	urlRe   = regexp.MustCompile(`https?://[^\s)>\]]+`)
	nameRe  = regexp.MustCompile(`\b[A-Z][a-z]+(?:\s+[A-Z][a-z]+)+\b`)
)

func tokenize(text string) []string {
	return tokenRe.FindAllString(strings.ToLower(text), -1)
}

// Keywords returns the top-k non-stopword tokens by frequency. Ties break
// by first appearance so the output is deterministic.
func Keywords(text string, k int) []Keyword {
	if k <= 0 {
		k = 10
	}

	counts := make(map[string]int)
	var order []string
	for _, tok := range tokenize(text) {
		if len(tok) < 3 || stopwords[tok] {
			continue
		}
		if counts[tok] == 0 {
			order = append(order, tok)
		}
		counts[tok]++
	}

	first := make(map[string]int, len(order))
	for i, w := range order {
		first[w] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		if counts[order[i]] != counts[order[j]] {
			return counts[order[i]] > counts[order[j]]
		}
		return first[order[i]] < first[order[j]]
	})

	if len(order) > k {
		order = order[:k]
	}
	out := make([]Keyword, len(order))
	for i, w := range order {
		out[i] = Keyword{Word: w, Count: counts[w]}
	}
	return out
}

// Sentimental scores a text by counting positive and negative word hits.
func Sentimental(text string) Sentiment {
	var pos, neg int
	for _, tok := range tokenize(text) {
		switch {
		case positiveWords[tok]:
			pos++
		case negativeWords[tok]:
			neg++
		}
	}

	total := pos + neg
	if total == 0 {
		return Sentiment{Label: "neutral", Score: 0}
	}
	score := float64(pos-neg) / float64(total)
	label := "neutral"
	if score > 0.2 {
		label = "positive"
	} else if score < -0.2 {
		label = "negative"
	}
	return Sentiment{Label: label, Score: score}
}

// Entities spots emails, URLs, and multi-word capitalized name runs, in
// that precedence order (a text span is reported once).
func Entities(text string) []Entity {
	var out []Entity
	seen := make(map[string]bool)

	add := func(kind string, matches []string) {
		for _, m := range matches {
			if seen[m] {
				continue
			}
			seen[m] = true
			out = append(out, Entity{Text: m, Kind: kind})
		}
	}

	add("email", emailRe.FindAllString(text, -1))
	add("url", urlRe.FindAllString(text, -1))

	// Strip already-claimed spans so e.g. a URL's host does not also show
	// up as a name.
	stripped := emailRe.ReplaceAllString(text, " ")
	stripped = urlRe.ReplaceAllString(stripped, " ")
	add("name", nameRe.FindAllString(stripped, -1))

	return out
}

// Similarity is the Jaccard index of the two texts' token sets, in [0, 1].
func Similarity(a, b string) float64 {
	setA := make(map[string]bool)
	for _, tok := range tokenize(a) {
		setA[tok] = true
	}
	setB := make(map[string]bool)
	for _, tok := range tokenize(b) {
		setB[tok] = true
	}
	if len(setA) == 0 && len(setB) == 0 {
		return 1
	}

	var intersection int
	for tok := range setA {
		if setB[tok] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// DuplicateThreshold is the similarity above which two notes are reported
// as near-duplicates.
const DuplicateThreshold = 0.8

// DuplicatePair indexes two near-duplicate texts from a corpus.
type DuplicatePair struct {
	A     int     `json:"a"`
	B     int     `json:"b"`
	Score float64 `json:"score"`
}

// Duplicates reports all pairs of texts whose similarity meets the
// threshold. Quadratic; fine at personal-index scale.
func Duplicates(texts []string, threshold float64) []DuplicatePair {
	if threshold <= 0 {
		threshold = DuplicateThreshold
	}

	var out []DuplicatePair
	for i := 0; i < len(texts); i++ {
		for j := i + 1; j < len(texts); j++ {
			if score := Similarity(texts[i], texts[j]); score >= threshold {
				out = append(out, DuplicatePair{A: i, B: j, Score: score})
			}
		}
	}
	return out
}
