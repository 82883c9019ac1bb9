package orchestrator

import "testing"

func TestSelectVariant(t *testing.T) {
	templates := []string{"a", "b", "c"}

	tests := []struct {
		seed uint64
		want string
	}{
		{seed: 0, want: "a"},
		{seed: 1, want: "b"},
		{seed: 5, want: "c"},
		{seed: 1<<63 + 1, want: templates[(1<<63+1)%3]},
	}
	for _, tt := range tests {
		if got := SelectVariant(tt.seed, templates); got != tt.want {
			t.Errorf("SelectVariant(%d) = %q, want %q", tt.seed, got, tt.want)
		}
	}

	if got := SelectVariant(42, nil); got != "" {
		t.Errorf("expected empty string for no templates, got %q", got)
	}
}

func TestSeedIsStable(t *testing.T) {
	a := Seed("u1", "Gastei 50 reais")
	if a != Seed("u1", "Gastei 50 reais") {
		t.Fatal("seed must be deterministic")
	}
	if a == Seed("u2", "Gastei 50 reais") {
		t.Error("different users should get different seeds")
	}
	if Seed("ab", "c") == Seed("a", "bc") {
		t.Error("parts must be separated before hashing")
	}
}
