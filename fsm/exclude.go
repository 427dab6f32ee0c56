package fsm

// BuildExclusionFilter builds the exclusion-rejecting filter FSM for
// excludes: a trie of the exclude strings whose terminal states are
// dead, closed over every byte: a byte a non-root state doesn't already
// handle follows the root's own edge for that byte if there is one,
// and otherwise goes back to the root.
//
// This is a deliberately simplified approximation of Aho-Corasick: it
// does not compute true longest-proper-suffix failure links. A string
// that contains no exclude is never rejected, but some strings that do
// contain an exclude are accepted: with the exclude "aab", the input
// "aaab" is accepted, because the third 'a' restarts matching from the
// root's 'a' edge and the two-'a' prefix already read is forgotten.
func BuildExclusionFilter(excludes []string) *FSM {
	f := New()
	dead := map[State]bool{}

	// Build the trie.
	for _, ex := range excludes {
		if ex == "" {
			continue
		}
		cur := f.Start
		for i := 0; i < len(ex); i++ {
			c := ex[i]
			next := State(-1)
			for _, e := range f.Edges(cur) {
				if e.Lo == c && e.Hi == c {
					next = e.To
					break
				}
			}
			if next == -1 {
				next = f.AddState()
				f.AddEdge(cur, c, c, next)
			}
			cur = next
		}
		dead[cur] = true
	}

	// Closure: for every non-dead state, fill in any byte not already
	// covered by a direct trie edge. Non-root states first inherit the
	// root's own edges for that byte (continuing to track progress
	// toward an exclude that restarts from its first character), and
	// anything still uncovered falls back to the root.
	rootEdges := byteCoverage(f, f.Start)
	for _, s := range f.States() {
		if dead[s] {
			continue
		}
		covered := byteCoverage(f, s)
		for b := 0; b < 256; b++ {
			byteVal := byte(b)
			if _, ok := covered[byteVal]; ok {
				continue
			}
			if s != f.Start {
				if to, ok := rootEdges[byteVal]; ok {
					f.AddEdge(s, byteVal, byteVal, to)
					continue
				}
			}
			f.AddEdge(s, byteVal, byteVal, f.Start)
		}
	}

	// Drop every edge targeting a dead state, then mark every
	// surviving state as accepting.
	for _, s := range f.States() {
		var kept []Edge
		for _, e := range f.Edges(s) {
			if !dead[e.To] {
				kept = append(kept, e)
			}
		}
		f.edges[s] = kept
	}
	for _, s := range f.States() {
		if !dead[s] {
			f.SetAccept(s, true)
		}
	}

	return f
}

// byteCoverage returns, for each byte value s has a direct edge for,
// the destination state.
func byteCoverage(f *FSM, s State) map[byte]State {
	out := map[byte]State{}
	for _, e := range f.Edges(s) {
		for b := int(e.Lo); b <= int(e.Hi); b++ {
			out[byte(b)] = e.To
		}
	}
	return out
}
