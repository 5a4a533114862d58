package grading

import "testing"

func TestIsSimilar(t *testing.T) {
	tests := []struct {
		name      string
		student   string
		reference string
		want      bool
	}{
		{"mitochondria paraphrase", "The mitochondria is the powerhouse", "mitochondria is powerhouse of the cell", true},
		{"unrelated", "completely unrelated text", "mitochondria powerhouse cell", false},
		{"empty student", "", "anything", false},
		{"empty reference", "anything", "", false},
		{"exact after normalization", "Hello, World!", "hello world", true},
		{"punctuation only reference", "anything", "...!!!", false},
		{"punctuation only both", "...", "!!!", false},
		{"duplicates collapse", "cell cell cell", "cell membrane nucleus", false},
		{"exactly seventy percent", "alpha bravo charlie delta echo foxtrot golf", "alpha bravo charlie delta echo foxtrot golf hotel india juliet", true},
		{"below seventy percent", "alpha bravo charlie delta echo foxtrot", "alpha bravo charlie delta echo foxtrot golf hotel india juliet", false},
		{"short words only", "it is", "is it", true},
		{"short words only mismatch", "no", "is it", false},
		{"case insensitive", "PHOTOSYNTHESIS makes GLUCOSE", "photosynthesis makes glucose", true},
		{"decomposed accents", "cafe\u0301 cre\u0300me", "caf\u00e9 cr\u00e8me", true},
		{"accent split by punctuation", "e-\u0301te\u0301 paris", "\u00e9t\u00e9 paris", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsSimilar(tt.student, tt.reference)
			if got != tt.want {
				t.Errorf("IsSimilar(%q, %q) = %v, want %v", tt.student, tt.reference, got, tt.want)
			}
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"",
		"   ",
		"Hello, World!",
		"The (quick) brown_fox; jumps~over `the` lazy-dog.",
		"Ünïcödé  TEXT\twith\ttabs",
		"a=b {c} #d $e %f ^g &h *i",
		"cafe\u0301 E\u0301TE\u0301",
		"e-\u0301 a_\u0308 o(\u0302",
		"\u00dfI\u0307.\u0301)\u00dfKB(",
		"\u0130stanbul \u0130I",
		",\u0345_\u0301",
	}
	for _, in := range inputs {
		once := Normalize(in)
		twice := Normalize(once)
		if once != twice {
			t.Errorf("Normalize not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestIsSimilarInvariantUnderNormalize(t *testing.T) {
	pairs := [][2]string{
		{"The mitochondria is the powerhouse", "mitochondria is powerhouse of the cell"},
		{"completely unrelated text", "mitochondria powerhouse cell"},
		{"WATER boils at 100 degrees!", "water boils at one hundred degrees"},
		{"...", "answer"},
		{"answer", "..."},
		{"Newton's (first) law: inertia", "newton's first law is inertia"},
		{"caf\u00e9 cre\u0300me", "cafe\u0301 cr\u00e8me"},
		{"e-\u0301t\u00e9 r\u00e9sum\u00e9", "\u00e9t\u00e9 resume\u0301"},
		{",\u0345_\u0301", "\u0301\u0345."},
		{"\u0130stanbul", "i\u0307stanbul"},
	}
	for _, p := range pairs {
		a, b := p[0], p[1]
		if got, norm := IsSimilar(a, b), IsSimilar(Normalize(a), Normalize(b)); got != norm {
			t.Errorf("IsSimilar(%q, %q) = %v but on normalized inputs = %v", a, b, got, norm)
		}
	}
}
