package retrieval

import (
	"fmt"
	"math"

	"github.com/danielpatrickdp/triad-fusion/go-controller/internal/signals"
	"github.com/danielpatrickdp/triad-fusion/go-controller/internal/vectorstore"
)

// Searcher is the part of the vector store the retriever needs.
type Searcher interface {
	Search(query []float32, k int) []vectorstore.Match
}

// #region retriever
// Retriever runs gated similar-memory retrieval over a vector store.
type Retriever struct {
	store  Searcher
	config Config
}

// NewRetriever creates a Retriever over store.
func NewRetriever(store Searcher, config Config) *Retriever {
	if config.TopK <= 0 {
		config.TopK = DefaultConfig().TopK
	}
	if config.Overfetch <= 0 {
		config.Overfetch = 1
	}
	return &Retriever{store: store, config: config}
}

// #endregion retriever

// #region similar
// Similar returns up to TopK memories closest to query.
//  1. Search: over-fetch TopK*Overfetch candidates by cosine similarity
//  2. Filter: drop excludeID, below-threshold hits and, when SameUserOnly,
//     memories whose user_id metadata differs from userID
//  3. Consistency: drop empty ids, non-finite scores and duplicate ids
func (r *Retriever) Similar(query []float32, userID, excludeID string) Result {
	var result Result

	hits := r.store.Search(query, r.config.TopK*r.config.Overfetch+1)
	result.Candidates = len(hits)
	if len(hits) == 0 {
		result.Reason = "search: no candidates"
		return result
	}

	var kept []vectorstore.Match
	for _, h := range hits {
		if h.ID == excludeID {
			continue
		}
		if h.Similarity < r.config.SimilarityThreshold {
			continue
		}
		if r.config.SameUserOnly && owner(h) != userID {
			continue
		}
		kept = append(kept, h)
	}
	result.Filtered = len(kept)
	if len(kept) == 0 {
		result.Reason = "filter: no candidates for user"
		return result
	}

	result.Memories = consistencyCheck(kept, r.config.TopK)
	result.Reason = fmt.Sprintf("retrieved %d memories (candidates=%d, filtered=%d)",
		len(result.Memories), result.Candidates, result.Filtered)
	return result
}

func owner(m vectorstore.Match) string {
	s, _ := m.Metadata["user_id"].(string)
	return s
}

// #endregion similar

// #region consistency-check
// consistencyCheck keeps at most k well-formed, unique matches in order.
func consistencyCheck(matches []vectorstore.Match, k int) []signals.Memory {
	seen := make(map[string]bool)
	var out []signals.Memory
	for _, m := range matches {
		if len(out) >= k {
			break
		}
		if m.ID == "" || math.IsNaN(m.Similarity) || math.IsInf(m.Similarity, 0) {
			continue
		}
		if seen[m.ID] {
			continue
		}
		seen[m.ID] = true
		out = append(out, signals.Memory{ID: m.ID, Similarity: m.Similarity, Metadata: m.Metadata})
	}
	return out
}

// #endregion consistency-check
