package retrieval

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/danielpatrickdp/triad-fusion/go-controller/internal/graph"
	"github.com/danielpatrickdp/triad-fusion/go-controller/internal/signals"
)

// Walker is the part of the concept store the graph retriever needs.
type Walker interface {
	Walk(ctx context.Context, entry string, maxDepth int, minStrength float64, maxNodes int) (graph.WalkResult, error)
}

// #region graph-retriever
// GraphRetriever finds concepts related to an utterance by walking the
// concept graph from its first content concept.
type GraphRetriever struct {
	graph       Walker
	maxDepth    int
	minStrength float64
	maxNodes    int
}

// NewGraphRetriever creates a GraphRetriever over g.
func NewGraphRetriever(g Walker) *GraphRetriever {
	return &GraphRetriever{
		graph:       g,
		maxDepth:    2,
		minStrength: 0.1,
		maxNodes:    8,
	}
}

// Related walks from the entry concept. Walk failures are logged and yield
// an empty result.
func (gr *GraphRetriever) Related(ctx context.Context, concepts []signals.Concept, text string) Related {
	entry := entryConcept(concepts, text)
	if entry == "" {
		return Related{}
	}

	walk, err := gr.graph.Walk(ctx, entry, gr.maxDepth, gr.minStrength, gr.maxNodes)
	if err != nil {
		log.Warn().Err(err).Str("component", "retrieval").Str("entry", entry).Msg("graph walk failed, skipping")
		return Related{Entry: entry}
	}

	out := Related{Entry: entry}
	// index 0 is the entry itself
	for i := 1; i < len(walk.Names); i++ {
		out.Concepts = append(out.Concepts, walk.Names[i])
		out.Scores = append(out.Scores, walk.Scores[i])
	}
	return out
}

// entryConcept picks the first concept lemma that is not a stopword, falling
// back to the first content token of text.
func entryConcept(concepts []signals.Concept, text string) string {
	for _, c := range concepts {
		lemma := strings.ToLower(c.Lemma)
		if lemma == "" {
			lemma = strings.ToLower(c.Name)
		}
		if len(lemma) >= 2 && !stopwords[lemma] {
			return lemma
		}
	}
	if toks := contentTokens(text); len(toks) > 0 {
		return toks[0]
	}
	return ""
}

// #endregion graph-retriever
