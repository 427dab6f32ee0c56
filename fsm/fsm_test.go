package fsm

import "testing"

func accepts(f *FSM, s string) bool {
	states := map[State]bool{f.Start: true}
	for i := 0; i < len(s); i++ {
		b := s[i]
		next := map[State]bool{}
		for st := range states {
			for _, e := range f.Edges(st) {
				if b >= e.Lo && b <= e.Hi {
					next[e.To] = true
				}
			}
		}
		states = next
		if len(states) == 0 {
			return false
		}
	}
	for st := range states {
		if f.IsAccept(st) {
			return true
		}
	}
	return false
}

func TestCompileLiteral(t *testing.T) {
	f, err := Compile("abc")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if !accepts(f, "abc") {
		t.Error("expected to accept \"abc\"")
	}
	if accepts(f, "abd") {
		t.Error("expected to reject \"abd\"")
	}
}

func TestCompileStar(t *testing.T) {
	f, err := Compile("a*")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	for _, s := range []string{"", "a", "aaaa"} {
		if !accepts(f, s) {
			t.Errorf("expected to accept %q", s)
		}
	}
	if accepts(f, "b") {
		t.Error("expected to reject \"b\"")
	}
}

func TestCompileAlternate(t *testing.T) {
	f, err := Compile("cat|dog")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if !accepts(f, "cat") || !accepts(f, "dog") {
		t.Error("expected to accept both alternatives")
	}
	if accepts(f, "cow") {
		t.Error("expected to reject \"cow\"")
	}
}

func TestCompileCharClass(t *testing.T) {
	f, err := Compile("[a-c]+")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if !accepts(f, "abcba") {
		t.Error("expected to accept \"abcba\"")
	}
	if accepts(f, "abcd") {
		t.Error("expected to reject \"abcd\"")
	}
}

func TestBuildExclusionFilterRejectsExcludedSubstring(t *testing.T) {
	f := BuildExclusionFilter([]string{"bad"})
	if accepts(f, "bad") {
		t.Error("expected filter to reject a string containing the exclude")
	}
	if accepts(f, "goodxbadxgood") {
		t.Error("expected filter to reject an exclude occurring mid-string")
	}
	if !accepts(f, "good") {
		t.Error("expected filter to accept a string without the exclude")
	}
}

func TestIntersectEmptyLanguageErrors(t *testing.T) {
	a, err := Compile("bad")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	filter := BuildExclusionFilter([]string{"bad"})
	_, err = Intersect(a, filter)
	if err == nil {
		t.Fatal("expected empty-intersection error")
	}
}

func TestIntersectAcceptsNonExcluded(t *testing.T) {
	a, err := Compile("[a-z]+")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	filter := BuildExclusionFilter([]string{"bad"})
	prod, err := Intersect(a, filter)
	if err != nil {
		t.Fatalf("Intersect: %v", err)
	}
	if !accepts(prod, "good") {
		t.Error("expected product to accept \"good\"")
	}
	if accepts(prod, "bad") {
		t.Error("expected product to reject \"bad\"")
	}
}
