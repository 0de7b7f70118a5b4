package hash

import (
	"strings"
	"testing"
)

func TestSHA256(t *testing.T) {
	tests := []struct {
		input []byte
		want  string
	}{
		{
			[]byte("hello"),
			"2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824",
		},
		{
			[]byte(""),
			"e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		},
	}

	for _, tt := range tests {
		t.Run(string(tt.input), func(t *testing.T) {
			got := SHA256(tt.input)
			if got != tt.want {
				t.Errorf("SHA256(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestAnswerKey(t *testing.T) {
	k1 := AnswerKey("llama3.2", "system", "prompt")
	k2 := AnswerKey("llama3.2", "system", "prompt")
	if k1 != k2 {
		t.Errorf("AnswerKey not deterministic: %s != %s", k1, k2)
	}

	tests := []struct {
		name                  string
		model, system, prompt string
	}{
		{"other model", "mistral", "system", "prompt"},
		{"other prompt", "llama3.2", "system", "prompt2"},
		{"shifted boundary", "llama3.2", "systemp", "rompt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if k := AnswerKey(tt.model, tt.system, tt.prompt); k == k1 {
				t.Errorf("AnswerKey collision for %s", tt.name)
			}
		})
	}

	if len(k1) != 64 {
		t.Errorf("AnswerKey length = %d, want 64", len(k1))
	}
	for _, c := range k1 {
		if !strings.ContainsRune("0123456789abcdef", c) {
			t.Errorf("AnswerKey contains non-hex character: %c", c)
		}
	}
}

func BenchmarkAnswerKey(b *testing.B) {
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		AnswerKey("llama3.2", "You classify game reviews.", "Review: great game")
	}
}
