package signals

import (
	"context"

	"github.com/rs/zerolog/log"
)

// #region producer

// Producer runs the emotion and linguistic providers and normalizes their
// answers into bundle parts.
type Producer struct {
	emotion    EmotionProvider
	embedder   Embedder
	linguistic LinguisticProvider
	config     ProducerConfig
}

// NewProducer creates a Producer. Any provider may be nil; the matching
// output then carries failure defaults.
func NewProducer(emotion EmotionProvider, embedder Embedder, linguistic LinguisticProvider, config ProducerConfig) *Producer {
	return &Producer{emotion: emotion, embedder: embedder, linguistic: linguistic, config: config}
}

// Mode reports the analysis tier this producer was configured for.
func (p *Producer) Mode() Mode {
	if p.config.Mode == "" {
		return ModeBasic
	}
	return p.config.Mode
}

// #endregion producer

// #region emotion

// Emotion classifies text, embeds it and derives the affect vector.
func (p *Producer) Emotion(ctx context.Context, text string) EmotionOutput {
	var (
		analysis EmotionAnalysis
		err      error
	)
	if p.emotion == nil {
		err = errNoProvider
	} else {
		analysis, err = p.emotion.AnalyzeEmotion(ctx, text)
	}
	if err != nil {
		log.Warn().Err(err).Str("component", "signals").Msg("emotion provider failed, using defaults")
	}
	out := NormalizeEmotion(analysis, err)
	out.Embedding = p.embed(ctx, text)
	out.Color = ColorVector(out.AllScores, out.Embedding, text, p.config)
	return out
}

// embed degrades to nil on error or nil embedder.
func (p *Producer) embed(ctx context.Context, text string) []float32 {
	if p.embedder == nil {
		return nil
	}
	emb, err := p.embedder.Embed(ctx, text)
	if err != nil {
		log.Warn().Err(err).Str("component", "signals").Msg("embedding failed")
		return nil
	}
	return emb
}

// #endregion emotion

// #region linguistic

// Linguistic extracts linguistic structure from text.
func (p *Producer) Linguistic(ctx context.Context, text string) LinguisticOutput {
	var (
		out LinguisticOutput
		err error
	)
	if p.linguistic == nil {
		err = errNoProvider
	} else {
		out, err = p.linguistic.AnalyzeLinguistics(ctx, text)
	}
	if err != nil {
		log.Warn().Err(err).Str("component", "signals").Msg("linguistic provider failed, using defaults")
	}
	return NormalizeLinguistic(out, text, err)
}

// #endregion linguistic
