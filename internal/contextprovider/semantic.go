package contextprovider

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strings"
	"sync"
)

var tokenPattern = regexp.MustCompile(`[a-zA-Z0-9]+`)

// estimateTokens is a rough token estimate (length over four
// characters) so context items report a cost without pulling in a real
// tokenizer.
func estimateTokens(text string) int {
	return len(text) / 4
}

// document is one piece of text the SemanticProvider can recall,
// represented as a term-frequency vector for cosine similarity.
type document struct {
	sessionID string
	text      string
	vector    map[string]float64
	norm      float64
}

// SemanticProvider is a simple in-memory, term-frequency-cosine
// similarity context provider: a stand-in for a real vector database
// that still exercises the Provider contract and its concurrent-query
// pattern. It stores the text of each completed turn per session and
// recalls the most similar prior turns for a new prompt.
type SemanticProvider struct {
	name    string
	topK    int
	minimum float64

	mu   sync.RWMutex
	docs []document
}

// NewSemanticProvider creates a SemanticProvider returning up to topK
// items per query, discarding matches scoring below minimum (0..1).
func NewSemanticProvider(name string, topK int, minimum float64) *SemanticProvider {
	if topK <= 0 {
		topK = 3
	}
	return &SemanticProvider{name: name, topK: topK, minimum: minimum}
}

func (p *SemanticProvider) Name() string { return p.name }

// Add stores text under sessionID for future recall, independent of
// the OnTurnComplete hook — useful for seeding a provider with
// documents ahead of any conversation.
func (p *SemanticProvider) Add(sessionID, text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	doc := newDocument(sessionID, text)
	p.mu.Lock()
	p.docs = append(p.docs, doc)
	p.mu.Unlock()
}

func newDocument(sessionID, text string) document {
	vec := termFrequency(text)
	var sumSquares float64
	for _, v := range vec {
		sumSquares += v * v
	}
	return document{sessionID: sessionID, text: text, vector: vec, norm: math.Sqrt(sumSquares)}
}

func termFrequency(text string) map[string]float64 {
	terms := tokenPattern.FindAllString(strings.ToLower(text), -1)
	freq := make(map[string]float64, len(terms))
	for _, t := range terms {
		freq[t]++
	}
	return freq
}

func cosineSimilarity(a, b document) float64 {
	if a.norm == 0 || b.norm == 0 {
		return 0
	}
	var dot float64
	for term, av := range a.vector {
		if bv, ok := b.vector[term]; ok {
			dot += av * bv
		}
	}
	return dot / (a.norm * b.norm)
}

// Query returns the topK stored documents most similar to prompt,
// across all sessions, scoring at or above minimum.
func (p *SemanticProvider) Query(_ context.Context, prompt, _ string) ([]Item, error) {
	query := newDocument("", prompt)

	p.mu.RLock()
	docs := make([]document, len(p.docs))
	copy(docs, p.docs)
	p.mu.RUnlock()

	type scored struct {
		doc   document
		score float64
	}
	candidates := make([]scored, 0, len(docs))
	for _, d := range docs {
		score := cosineSimilarity(query, d)
		if score >= p.minimum {
			candidates = append(candidates, scored{doc: d, score: score})
		}
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })

	if len(candidates) > p.topK {
		candidates = candidates[:p.topK]
	}

	items := make([]Item, 0, len(candidates))
	for _, c := range candidates {
		items = append(items, Item{
			Source: p.name,
			Text:   c.doc.text,
			Score:  c.score,
			Tokens: estimateTokens(c.doc.text),
		})
	}
	return items, nil
}

// OnTurnComplete stores the completed exchange for future recall.
func (p *SemanticProvider) OnTurnComplete(_ context.Context, sessionID, prompt, responseText string) error {
	p.Add(sessionID, prompt+"\n"+responseText)
	return nil
}
