package fsm

import (
	"fmt"
	"regexp/syntax"
	"unicode/utf8"
)

// Compile builds an FSM recognizing the language of pattern, via a
// Thompson construction over the standard library's regex AST
// (regexp/syntax). The result has no epsilon edges: construction-time
// epsilon transitions are closure-eliminated before returning.
//
// Literals are encoded as UTF-8 bytes, but a character class (and `.`)
// always consumes exactly one byte: a class range ending at or below
// 0xFF becomes a byte edge over the same values, and a range ending
// above 0xFF becomes an edge matching any single byte. A class therefore
// does not match the multi-byte UTF-8 encoding of a non-ASCII code point.
// Anchors (^, $, \b) are treated as always-satisfied (epsilon) since
// this FSM never tracks a surrounding buffer position.
func Compile(pattern string) (*FSM, error) {
	re, err := syntax.Parse(pattern, syntax.Perl)
	if err != nil {
		return nil, fmt.Errorf("compiling regex %q: %w", pattern, err)
	}
	re = re.Simplify()

	b := &tbuilder{eps: map[State][]State{}, byteEdges: map[State][]Edge{}}
	start, end, err := b.compile(re)
	if err != nil {
		return nil, fmt.Errorf("compiling regex %q: %w", pattern, err)
	}
	return b.finish(start, end), nil
}

// tbuilder accumulates epsilon and byte edges during Thompson
// construction; finish() eliminates the epsilon edges.
type tbuilder struct {
	n         int
	eps       map[State][]State
	byteEdges map[State][]Edge
}

func (b *tbuilder) newState() State {
	s := State(b.n)
	b.n++
	return s
}

func (b *tbuilder) addEps(from, to State) {
	b.eps[from] = append(b.eps[from], to)
}

func (b *tbuilder) addByte(from State, lo, hi byte, to State) {
	b.byteEdges[from] = append(b.byteEdges[from], Edge{Lo: lo, Hi: hi, To: to})
}

// finish eliminates epsilon edges by closure, producing a clean FSM
// whose states are exactly the tbuilder's states and whose accept set
// is every state from which end is epsilon-reachable.
func (b *tbuilder) finish(start, end State) *FSM {
	f := &FSM{accept: map[State]bool{}, edges: map[State][]Edge{}}
	for i := 0; i < b.n; i++ {
		f.AddState()
	}
	f.Start = start

	for s := State(0); s < State(b.n); s++ {
		for _, t := range b.closure(s) {
			if t == end {
				f.SetAccept(s, true)
			}
			for _, e := range b.byteEdges[t] {
				f.AddEdge(s, e.Lo, e.Hi, e.To)
			}
		}
	}
	return f
}

func (b *tbuilder) closure(s State) []State {
	seen := map[State]bool{s: true}
	stack := []State{s}
	out := []State{s}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, next := range b.eps[cur] {
			if !seen[next] {
				seen[next] = true
				stack = append(stack, next)
				out = append(out, next)
			}
		}
	}
	return out
}

// compile returns a fragment (start, end) recognizing re's language,
// with exactly one accepting state (end) reachable only via epsilon
// or byte edges from start.
func (b *tbuilder) compile(re *syntax.Regexp) (State, State, error) {
	switch re.Op {
	case syntax.OpEmptyMatch, syntax.OpBeginLine, syntax.OpEndLine,
		syntax.OpBeginText, syntax.OpEndText, syntax.OpWordBoundary,
		syntax.OpNoWordBoundary:
		s := b.newState()
		return s, s, nil

	case syntax.OpNoMatch:
		s, e := b.newState(), b.newState()
		return s, e, nil

	case syntax.OpLiteral:
		start := b.newState()
		cur := start
		for _, r := range re.Rune {
			var buf [utf8.UTFMax]byte
			n := utf8.EncodeRune(buf[:], r)
			for i := 0; i < n; i++ {
				next := b.newState()
				b.addByte(cur, buf[i], buf[i], next)
				cur = next
			}
		}
		return start, cur, nil

	case syntax.OpCharClass:
		start, end := b.newState(), b.newState()
		for i := 0; i+1 < len(re.Rune); i += 2 {
			lo, hi := re.Rune[i], re.Rune[i+1]
			if hi > 0xFF {
				b.addByte(start, 0x00, 0xFF, end)
				continue
			}
			b.addByte(start, byte(lo), byte(hi), end)
		}
		return start, end, nil

	case syntax.OpAnyChar, syntax.OpAnyCharNotNL:
		start, end := b.newState(), b.newState()
		b.addByte(start, 0x00, 0xFF, end)
		return start, end, nil

	case syntax.OpCapture:
		return b.compile(re.Sub[0])

	case syntax.OpConcat:
		if len(re.Sub) == 0 {
			s := b.newState()
			return s, s, nil
		}
		start, end, err := b.compile(re.Sub[0])
		if err != nil {
			return 0, 0, err
		}
		for _, sub := range re.Sub[1:] {
			s2, e2, err := b.compile(sub)
			if err != nil {
				return 0, 0, err
			}
			b.addEps(end, s2)
			end = e2
		}
		return start, end, nil

	case syntax.OpAlternate:
		start, end := b.newState(), b.newState()
		for _, sub := range re.Sub {
			s, e, err := b.compile(sub)
			if err != nil {
				return 0, 0, err
			}
			b.addEps(start, s)
			b.addEps(e, end)
		}
		return start, end, nil

	case syntax.OpStar:
		s, e, err := b.compile(re.Sub[0])
		if err != nil {
			return 0, 0, err
		}
		start, end := b.newState(), b.newState()
		b.addEps(start, s)
		b.addEps(start, end)
		b.addEps(e, s)
		b.addEps(e, end)
		return start, end, nil

	case syntax.OpPlus:
		s, e, err := b.compile(re.Sub[0])
		if err != nil {
			return 0, 0, err
		}
		end := b.newState()
		b.addEps(e, s)
		b.addEps(e, end)
		return s, end, nil

	case syntax.OpQuest:
		s, e, err := b.compile(re.Sub[0])
		if err != nil {
			return 0, 0, err
		}
		start, end := b.newState(), b.newState()
		b.addEps(start, s)
		b.addEps(start, end)
		b.addEps(e, end)
		return start, end, nil

	case syntax.OpRepeat:
		return b.compileRepeat(re)

	default:
		return 0, 0, fmt.Errorf("unsupported regex construct (op %v)", re.Op)
	}
}

func (b *tbuilder) compileRepeat(re *syntax.Regexp) (State, State, error) {
	min, max := re.Min, re.Max
	sub := re.Sub[0]

	start := b.newState()
	cur := start
	for i := 0; i < min; i++ {
		s, e, err := b.compile(sub)
		if err != nil {
			return 0, 0, err
		}
		b.addEps(cur, s)
		cur = e
	}

	if max == -1 {
		s, e, err := b.compile(sub)
		if err != nil {
			return 0, 0, err
		}
		loopStart, loopEnd := b.newState(), b.newState()
		b.addEps(loopStart, s)
		b.addEps(loopStart, loopEnd)
		b.addEps(e, s)
		b.addEps(e, loopEnd)
		b.addEps(cur, loopStart)
		return start, loopEnd, nil
	}

	end := b.newState()
	b.addEps(cur, end)
	for i := min; i < max; i++ {
		s, e, err := b.compile(sub)
		if err != nil {
			return 0, 0, err
		}
		b.addEps(cur, s)
		b.addEps(e, end)
		cur = e
	}
	return start, end, nil
}
