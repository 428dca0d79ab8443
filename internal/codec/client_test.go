package codec

import (
	"context"
	"errors"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// #region mock

// mockInvoker answers each method with a canned Struct or error.
type mockInvoker struct {
	replies map[string]map[string]any
	err     error
	methods []string
	texts   []string
}

func (m *mockInvoker) Invoke(ctx context.Context, method string, args any, reply any, _ ...grpc.CallOption) error {
	m.methods = append(m.methods, method)
	m.texts = append(m.texts, args.(*structpb.Struct).GetFields()["text"].GetStringValue())
	if m.err != nil {
		return m.err
	}
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("expected deadline on context")
	}
	s, err := structpb.NewStruct(m.replies[method])
	if err != nil {
		return err
	}
	proto.Merge(reply.(*structpb.Struct), s)
	return nil
}

// #endregion mock

// #region constructor-tests

func TestNewCodecClientInvalidAddr(t *testing.T) {
	client, err := NewCodecClient("localhost:0", time.Second)
	if err != nil {
		t.Fatalf("unexpected error creating client: %v", err)
	}
	defer client.Close()
}

func TestCloseWithoutConn(t *testing.T) {
	client := NewCodecClientWithInvoker(&mockInvoker{}, 0)
	if err := client.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

// #endregion constructor-tests

// #region rpc-tests

func TestAnalyzeEmotion(t *testing.T) {
	inv := &mockInvoker{replies: map[string]map[string]any{
		MethodAnalyzeEmotion: {
			"dominant_label": "joy",
			"dominant_score": 0.82,
			"all_scores":     map[string]any{"joy": 0.82, "love": 0.1},
		},
	}}
	client := NewCodecClientWithInvoker(inv, time.Second)

	got, err := client.AnalyzeEmotion(context.Background(), "what a day")
	if err != nil {
		t.Fatalf("analyze emotion: %v", err)
	}
	if got.Label != "joy" || got.Score != 0.82 {
		t.Fatalf("unexpected analysis: %+v", got)
	}
	if got.AllScores["love"] != 0.1 {
		t.Fatalf("expected love score 0.1, got %f", got.AllScores["love"])
	}
	if inv.texts[0] != "what a day" {
		t.Fatalf("request text not forwarded: %q", inv.texts[0])
	}
}

func TestEmbed(t *testing.T) {
	inv := &mockInvoker{replies: map[string]map[string]any{
		MethodEmbed: {"embedding": []any{0.1, 0.2, 0.3}},
	}}
	client := NewCodecClientWithInvoker(inv, time.Second)

	emb, err := client.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if len(emb) != 3 || emb[2] != float32(0.3) {
		t.Fatalf("unexpected embedding: %v", emb)
	}
	if inv.methods[0] != MethodEmbed {
		t.Fatalf("wrong method: %s", inv.methods[0])
	}
}

func TestAnalyzeLinguistics(t *testing.T) {
	inv := &mockInvoker{replies: map[string]map[string]any{
		MethodAnalyzeLinguistics: {
			"tokens":        6,
			"pos_histogram": map[string]any{"NOUN": 2, "VERB": 1},
			"sentences":     []any{"I will manipulate them"},
			"concepts": []any{
				map[string]any{"name": "manipulation", "lemma": "manipulation", "entity_type": "LEMMA"},
			},
			"relationships": []any{
				map[string]any{"subject": "I", "predicate": "manipulate", "predicate_lemma": "manipulate", "object": "them"},
			},
			"pattern_matches": map[string]any{
				"harm":    []any{map[string]any{"text": "hurt", "lemma": "hurt"}},
				"ethical": []any{},
				"command": []any{},
			},
		},
	}}
	client := NewCodecClientWithInvoker(inv, time.Second)

	out, err := client.AnalyzeLinguistics(context.Background(), "I will manipulate them")
	if err != nil {
		t.Fatalf("analyze linguistics: %v", err)
	}
	if out.Features.TokenCount != 6 || out.Features.POSHistogram["NOUN"] != 2 {
		t.Fatalf("unexpected features: %+v", out.Features)
	}
	if len(out.Concepts) != 1 || out.Concepts[0].Lemma != "manipulation" {
		t.Fatalf("unexpected concepts: %+v", out.Concepts)
	}
	if len(out.Relationships) != 1 || out.Relationships[0].PredicateLemma != "manipulate" {
		t.Fatalf("unexpected relationships: %+v", out.Relationships)
	}
	if len(out.Patterns.Harm) != 1 {
		t.Fatalf("expected one harm match, got %d", len(out.Patterns.Harm))
	}
}

func TestRPCError(t *testing.T) {
	client := NewCodecClientWithInvoker(&mockInvoker{err: errors.New("unavailable")}, time.Second)

	if _, err := client.AnalyzeEmotion(context.Background(), "x"); err == nil {
		t.Fatal("expected error")
	}
	if _, err := client.Embed(context.Background(), "x"); err == nil {
		t.Fatal("expected error")
	}
	if _, err := client.AnalyzeLinguistics(context.Background(), "x"); err == nil {
		t.Fatal("expected error")
	}
}

// #endregion rpc-tests
