package fsm

import (
	"testing"

	re2 "github.com/wasilibs/go-re2"
)

// TestCompileMatchesRE2Oracle cross-checks Compile's NFA against
// go-re2's own match decision, the same role it plays for the teacher
// comparing its hand-rolled regex engine to RE2.
func TestCompileMatchesRE2Oracle(t *testing.T) {
	cases := []struct {
		pattern string
		samples []string
	}{
		{`[a-z]+[0-9]+`, []string{"user123", "USER123", "abc", ""}},
		{`(cat|dog)s?`, []string{"cat", "cats", "dog", "dogs", "cow"}},
		{`a*b`, []string{"b", "ab", "aaab", "a", ""}},
		{`[A-Za-z_][A-Za-z0-9_]*`, []string{"ident_1", "1ident", "_ok", ""}},
	}

	for _, c := range cases {
		oracle, err := re2.Compile("^(?:" + c.pattern + ")$")
		if err != nil {
			t.Fatalf("re2.Compile(%q): %v", c.pattern, err)
		}
		f, err := Compile(c.pattern)
		if err != nil {
			t.Fatalf("Compile(%q): %v", c.pattern, err)
		}
		for _, s := range c.samples {
			want := oracle.MatchString(s)
			got := accepts(f, s)
			if got != want {
				t.Errorf("pattern %q, input %q: FSM accepts=%v, RE2 full-match=%v", c.pattern, s, got, want)
			}
		}
	}
}
