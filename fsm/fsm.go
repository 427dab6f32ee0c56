// Package fsm builds byte-level finite state machines: a regex
// compiler, an exclusion-rejecting filter, and the product
// intersection the emitter needs to compile a regex-with-excludes
// Format into a context-free grammar.
//
// FSMs here are nondeterministic by construction (overlapping edges,
// multiple reachable states for the same input) and are never
// determinized: the emitter's state-to-rule lowering expresses that
// nondeterminism directly as grammar choices, so determinizing first
// would do work the grammar already does for free.
package fsm

// State identifies a state within an FSM. States are dense integers
// starting at 0.
type State int

// Edge is a transition consuming any byte in [Lo, Hi] and moving to To.
type Edge struct {
	Lo, Hi byte
	To     State
}

// FSM is a byte-level nondeterministic automaton with no epsilon
// transitions: construction-time epsilon edges (used by the regex
// compiler) are eliminated before an FSM is returned to a caller.
type FSM struct {
	Start  State
	accept map[State]bool
	edges  map[State][]Edge
	n      int
}

// New returns an empty FSM with a single, non-accepting start state.
func New() *FSM {
	f := &FSM{accept: map[State]bool{}, edges: map[State][]Edge{}}
	f.Start = f.AddState()
	return f
}

// AddState allocates and returns a new, non-accepting state.
func (f *FSM) AddState() State {
	s := State(f.n)
	f.n++
	return s
}

// NumStates returns the number of states in the FSM.
func (f *FSM) NumStates() int {
	return f.n
}

// SetAccept marks or unmarks s as an accepting state.
func (f *FSM) SetAccept(s State, accept bool) {
	if accept {
		f.accept[s] = true
	} else {
		delete(f.accept, s)
	}
}

// IsAccept reports whether s is an accepting state.
func (f *FSM) IsAccept(s State) bool {
	return f.accept[s]
}

// AddEdge adds a transition from s to to consuming any byte in [lo, hi].
func (f *FSM) AddEdge(s State, lo, hi byte, to State) {
	f.edges[s] = append(f.edges[s], Edge{Lo: lo, Hi: hi, To: to})
}

// Edges returns the outgoing edges of s.
func (f *FSM) Edges(s State) []Edge {
	return f.edges[s]
}

// States returns every state in the FSM, in allocation order.
func (f *FSM) States() []State {
	out := make([]State, f.n)
	for i := range out {
		out[i] = State(i)
	}
	return out
}
