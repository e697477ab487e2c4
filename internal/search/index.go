// Package search provides a small, deterministic, concurrency-safe in-memory
// similarity index over listing text. It backs the "similar items" view:
//
//   - No logging in the library (callers decide how/what to log)
//   - Functional options for stop words, minimum token counts and caps
//   - Unicode-aware tokenization with optional stop-word removal
//   - Immutable, read-only index after construction (safe for concurrent use)
//   - Deterministic scoring and sorting (stable order for ties)
//
// Scoring uses Jaccard similarity between the query token set and each
// document's token set: score = |Q ∩ D| / |Q ∪ D|.
package search

import (
	"regexp"
	"sort"
	"strings"
)

// Doc is one indexed document, usually a listing's title and description.
type Doc struct {
	ID   string
	Text string
}

// Result is a ranked document id with its similarity score.
type Result struct {
	ID    string
	Score float64
}

// Index is the minimal interface implemented by all search indices.
type Index interface {
	TopK(query string, k int) []Result
}

// DefaultStopwords are common English words that carry no signal in short
// listing descriptions.
var DefaultStopwords = []string{
	"a", "an", "and", "the", "of", "for", "in", "on", "with", "to", "is", "it",
	"this", "that", "at", "by", "or", "as", "be", "are", "from", "very", "used",
}

// ----------------------------------------------------------------------------
// Options

type Option func(*config)

type config struct {
	minTokens int
	stopwords map[string]struct{}
	maxDocs   int
}

func defaultConfig() config {
	return config{
		minTokens: 1,
		stopwords: nil,
		maxDocs:   0,
	}
}

// WithMinTokens skips documents with fewer than n distinct tokens.
func WithMinTokens(n int) Option {
	return func(c *config) {
		if n >= 0 {
			c.minTokens = n
		}
	}
}

func WithStopwords(words []string) Option {
	return func(c *config) {
		m := make(map[string]struct{}, len(words))
		for _, w := range words {
			w = strings.ToLower(strings.TrimSpace(w))
			if w != "" {
				m[w] = struct{}{}
			}
		}
		if len(m) > 0 {
			c.stopwords = m
		}
	}
}

func WithMaxDocs(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxDocs = n
		}
	}
}

// ----------------------------------------------------------------------------
// Implementation

type doc struct {
	id     string
	tokens map[string]struct{}
	tLen   int
}

type index struct {
	cfg  config
	docs []doc
}

// NewIndex builds an Index over docs. Documents with an empty id or too few
// tokens are skipped; the first occurrence of a duplicate id wins.
func NewIndex(docs []Doc, opts ...Option) Index {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	out := make([]doc, 0, len(docs))
	seen := make(map[string]struct{}, len(docs))
	for _, d := range docs {
		if d.ID == "" {
			continue
		}
		if _, dup := seen[d.ID]; dup {
			continue
		}
		toks := tokenize(d.Text, cfg.stopwords)
		if len(toks) == 0 || len(toks) < cfg.minTokens {
			continue
		}
		seen[d.ID] = struct{}{}
		out = append(out, doc{id: d.ID, tokens: toks, tLen: len(toks)})
		if cfg.maxDocs > 0 && len(out) >= cfg.maxDocs {
			break
		}
	}
	return &index{cfg: cfg, docs: out}
}

// TopK returns up to k best-matching documents by Jaccard similarity.
// Documents sharing no token with the query are never returned.
func (i *index) TopK(q string, k int) []Result {
	if len(i.docs) == 0 {
		return nil
	}
	if strings.TrimSpace(q) == "" {
		return nil
	}
	if k <= 0 {
		k = 3
	}
	qTokens := tokenize(q, i.cfg.stopwords)
	if len(qTokens) == 0 {
		return nil
	}
	qLen := len(qTokens)

	buf := make([]Result, 0, min(k*4, len(i.docs)))
	for _, d := range i.docs {
		over := overlap(qTokens, d.tokens)
		if over == 0 {
			continue
		}
		union := float64(qLen + d.tLen - over)
		if union <= 0 {
			continue
		}
		buf = append(buf, Result{ID: d.id, Score: float64(over) / union})
	}
	if len(buf) == 0 {
		return nil
	}

	sort.SliceStable(buf, func(a, b int) bool {
		if buf[a].Score != buf[b].Score {
			return buf[a].Score > buf[b].Score
		}
		return buf[a].ID < buf[b].ID
	})

	if k > len(buf) {
		k = len(buf)
	}
	return buf[:k]
}

// ----------------------------------------------------------------------------
// Helpers

var wordRE = regexp.MustCompile(`\p{L}+\p{N}*|\p{N}+`)

// Tokenize returns the distinct lower-cased word tokens of s.
func Tokenize(s string) []string {
	set := tokenize(s, nil)
	out := make([]string, 0, len(set))
	for w := range set {
		out = append(out, w)
	}
	sort.Strings(out)
	return out
}

func tokenize(s string, stop map[string]struct{}) map[string]struct{} {
	s = strings.ToLower(s)
	words := wordRE.FindAllString(s, -1)
	if len(words) == 0 {
		return nil
	}
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		if w == "" {
			continue
		}
		if stop != nil {
			if _, skip := stop[w]; skip {
				continue
			}
		}
		out[w] = struct{}{}
	}
	return out
}

func overlap(a, b map[string]struct{}) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	n := 0
	if len(a) > len(b) {
		a, b = b, a
	}
	for k := range a {
		if _, ok := b[k]; ok {
			n++
		}
	}
	return n
}
