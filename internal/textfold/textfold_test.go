package textfold

import "testing"

func TestFold(t *testing.T) {
	tests := map[string]string{
		"Análise":      "analise",
		"TENDÊNCIAS":   "tendencias",
		"lançamento":   "lancamento",
		"¿Qué pasó?":   "¿que paso?",
		"plain ascii!": "plain ascii!",
		"":             "",
	}
	for in, want := range tests {
		if got := Fold(in); got != want {
			t.Errorf("Fold(%q) = %q, want %q", in, got, want)
		}
	}
}
