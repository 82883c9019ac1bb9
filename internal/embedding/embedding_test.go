package embedding

import (
	"context"
	"math"
	"testing"
)

func mustEmbed(t *testing.T, e Embedder, text string) []float32 {
	t.Helper()
	v, err := e.Embed(context.Background(), text)
	if err != nil {
		t.Fatal(err)
	}
	return v
}

func TestHashEmbedderDeterministic(t *testing.T) {
	e := NewHashEmbedder(0)
	a := mustEmbed(t, e, "Gastei 50 reais no supermercado")
	b := mustEmbed(t, e, "gastei 50 reais no supermercado!")

	if len(a) != DefaultDimensions {
		t.Fatalf("expected %d dims, got %d", DefaultDimensions, len(a))
	}
	if sim := Cosine(a, b); math.Abs(sim-1) > 1e-6 {
		t.Errorf("same words should embed identically, cosine=%v", sim)
	}
}

func TestHashEmbedderSimilarity(t *testing.T) {
	e := NewHashEmbedder(512)
	query := mustEmbed(t, e, "credit card interest rates")
	related := mustEmbed(t, e, "how credit card interest is charged")
	unrelated := mustEmbed(t, e, "grocery shopping list for the weekend")

	if Cosine(query, related) <= Cosine(query, unrelated) {
		t.Errorf("related text should score higher: related=%v unrelated=%v",
			Cosine(query, related), Cosine(query, unrelated))
	}
}

func TestHashEmbedderEmptyAndCancelled(t *testing.T) {
	e := NewHashEmbedder(16)
	v := mustEmbed(t, e, "  ...  ")
	for _, x := range v {
		if x != 0 {
			t.Fatal("empty text should give a zero vector")
		}
	}
	if Cosine(v, v) != 0 {
		t.Error("cosine of zero vectors should be 0")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := e.Embed(ctx, "x"); err == nil {
		t.Error("expected error on cancelled context")
	}
}

func TestEncodeDecode(t *testing.T) {
	in := []float32{0, 1.5, -2.25, float32(math.Pi)}
	out := Decode(Encode(in))
	if len(out) != len(in) {
		t.Fatalf("len %d != %d", len(out), len(in))
	}
	for i := range in {
		if in[i] != out[i] {
			t.Errorf("index %d: %v != %v", i, out[i], in[i])
		}
	}
	if Cosine([]float32{1, 0}, []float32{1}) != 0 {
		t.Error("mismatched lengths should give 0")
	}
}
