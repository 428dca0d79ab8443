package retrieval

import "github.com/danielpatrickdp/triad-fusion/go-controller/internal/signals"

// #region config
// Config holds thresholds and limits for similar-memory retrieval.
type Config struct {
	TopK                int     // memories returned per query
	Overfetch           int     // candidates searched per returned memory
	SimilarityThreshold float64 // min cosine similarity; <= -1 disables the gate
	SameUserOnly        bool    // keep only memories written by the querying user
}

// DefaultConfig returns the retrieval defaults: three memories, same user only.
func DefaultConfig() Config {
	return Config{
		TopK:                3,
		Overfetch:           4,
		SimilarityThreshold: -1,
		SameUserOnly:        true,
	}
}

// #endregion config

// #region result
// Result captures the outcome of the gated search.
type Result struct {
	Candidates int              // raw hits from the vector store
	Filtered   int              // hits surviving threshold and user filter
	Memories   []signals.Memory // final memories after the consistency check
	Reason     string           // human-readable explanation
}

// #endregion result

// #region related
// Related is the outcome of a concept-graph walk.
type Related struct {
	Entry    string
	Concepts []string  // walked concepts, entry excluded, walk order
	Scores   []float64 // cumulative strength at each concept
}

// #endregion related
