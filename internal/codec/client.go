package codec

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/triad-fusion/go-controller/internal/signals"
)

// Fully qualified methods of the NLP analysis service. Requests and replies
// are google.protobuf.Struct messages.
const (
	MethodAnalyzeEmotion     = "/triad.nlp.v1.AnalysisService/AnalyzeEmotion"
	MethodEmbed              = "/triad.nlp.v1.AnalysisService/Embed"
	MethodAnalyzeLinguistics = "/triad.nlp.v1.AnalysisService/AnalyzeLinguistics"
)

// #region client-struct

// Invoker is the unary-call surface of a grpc.ClientConn.
type Invoker interface {
	Invoke(ctx context.Context, method string, args any, reply any, opts ...grpc.CallOption) error
}

// CodecClient wraps the gRPC connection to the NLP analysis service and
// implements the signals provider interfaces for enhanced mode.
type CodecClient struct {
	conn    *grpc.ClientConn
	invoker Invoker
	timeout time.Duration
}

var (
	_ signals.EmotionProvider    = (*CodecClient)(nil)
	_ signals.Embedder           = (*CodecClient)(nil)
	_ signals.LinguisticProvider = (*CodecClient)(nil)
)

// #endregion client-struct

// #region constructor

// NewCodecClient connects to the analysis gRPC server. timeout bounds every
// call; zero leaves the caller's deadline in charge.
func NewCodecClient(addr string, timeout time.Duration) (*CodecClient, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &CodecClient{conn: conn, invoker: conn, timeout: timeout}, nil
}

// NewCodecClientWithInvoker creates a CodecClient over an injected invoker.
// Used for testing without a real gRPC connection.
func NewCodecClientWithInvoker(inv Invoker, timeout time.Duration) *CodecClient {
	return &CodecClient{invoker: inv, timeout: timeout}
}

// #endregion constructor

// #region close

// Close shuts down the gRPC connection.
func (c *CodecClient) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// #endregion close

// #region wire-types

type emotionReply struct {
	DominantLabel string             `json:"dominant_label"`
	DominantScore float64            `json:"dominant_score"`
	AllScores     map[string]float64 `json:"all_scores"`
}

type embedReply struct {
	Embedding []float32 `json:"embedding"`
}

type linguisticReply struct {
	Tokens           int                    `json:"tokens"`
	POSHistogram     map[string]int         `json:"pos_histogram"`
	Sentences        []string               `json:"sentences"`
	KeyLemmas        []string               `json:"key_lemmas"`
	DependencyLabels []string               `json:"dependency_labels"`
	Entities         []signals.Entity       `json:"entities"`
	Concepts         []signals.Concept      `json:"concepts"`
	Relationships    []signals.Relationship `json:"relationships"`
	PatternMatches   signals.PatternMatches `json:"pattern_matches"`
}

// #endregion wire-types

// #region analyze-emotion

// AnalyzeEmotion classifies text into the 28-label emotion distribution.
func (c *CodecClient) AnalyzeEmotion(ctx context.Context, text string) (signals.EmotionAnalysis, error) {
	var reply emotionReply
	if err := c.call(ctx, MethodAnalyzeEmotion, text, &reply); err != nil {
		return signals.EmotionAnalysis{}, fmt.Errorf("analyze emotion rpc: %w", err)
	}
	return signals.EmotionAnalysis{
		Label:     reply.DominantLabel,
		Score:     reply.DominantScore,
		AllScores: reply.AllScores,
	}, nil
}

// #endregion analyze-emotion

// #region embed

// Embed sends text to the analysis service for embedding.
func (c *CodecClient) Embed(ctx context.Context, text string) ([]float32, error) {
	var reply embedReply
	if err := c.call(ctx, MethodEmbed, text, &reply); err != nil {
		return nil, fmt.Errorf("embed rpc: %w", err)
	}
	return reply.Embedding, nil
}

// #endregion embed

// #region analyze-linguistics

// AnalyzeLinguistics runs the full linguistic analysis of text.
func (c *CodecClient) AnalyzeLinguistics(ctx context.Context, text string) (signals.LinguisticOutput, error) {
	var reply linguisticReply
	if err := c.call(ctx, MethodAnalyzeLinguistics, text, &reply); err != nil {
		return signals.LinguisticOutput{}, fmt.Errorf("analyze linguistics rpc: %w", err)
	}
	return signals.LinguisticOutput{
		Text: text,
		Features: signals.Features{
			TokenCount:       reply.Tokens,
			POSHistogram:     reply.POSHistogram,
			Sentences:        reply.Sentences,
			KeyLemmas:        reply.KeyLemmas,
			DependencyLabels: reply.DependencyLabels,
		},
		Entities:      reply.Entities,
		Concepts:      reply.Concepts,
		Relationships: reply.Relationships,
		Patterns:      reply.PatternMatches,
	}, nil
}

// #endregion analyze-linguistics

// #region call

func (c *CodecClient) call(ctx context.Context, method, text string, out any) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	req, err := structpb.NewStruct(map[string]any{"text": text})
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp := &structpb.Struct{}
	if err := c.invoker.Invoke(ctx, method, req, resp); err != nil {
		return err
	}
	return decode(resp, out)
}

// decode maps a Struct reply onto a json-tagged Go value.
func decode(msg *structpb.Struct, out any) error {
	raw, err := protojson.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal reply: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode reply: %w", err)
	}
	return nil
}

// #endregion call
