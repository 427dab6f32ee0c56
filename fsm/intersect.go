package fsm

import "fmt"

// Intersect builds the product FSM of a and b, accepting exactly the
// strings both accept. It returns an error if no state reachable from
// the product's start is accepting, i.e. the intersection's language
// is empty.
func Intersect(a, b *FSM) (*FSM, error) {
	type pair struct {
		A, B State
	}

	result := &FSM{accept: map[State]bool{}, edges: map[State][]Edge{}}
	ids := map[pair]State{}
	id := func(p pair) State {
		if s, ok := ids[p]; ok {
			return s
		}
		s := result.AddState()
		ids[p] = s
		return s
	}

	start := pair{a.Start, b.Start}
	result.Start = id(start)

	visited := map[pair]bool{start: true}
	queue := []pair{start}
	hasAccept := false

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		curID := ids[cur]

		if a.IsAccept(cur.A) && b.IsAccept(cur.B) {
			result.SetAccept(curID, true)
			hasAccept = true
		}

		for _, ea := range a.Edges(cur.A) {
			for _, eb := range b.Edges(cur.B) {
				lo := maxByte(ea.Lo, eb.Lo)
				hi := minByte(ea.Hi, eb.Hi)
				if lo > hi {
					continue
				}
				next := pair{ea.To, eb.To}
				nextID := id(next)
				result.AddEdge(curID, lo, hi, nextID)
				if !visited[next] {
					visited[next] = true
					queue = append(queue, next)
				}
			}
		}
	}

	if !hasAccept {
		return nil, fmt.Errorf("regex with excludes results in empty language")
	}
	return result, nil
}

func maxByte(a, b byte) byte {
	if a > b {
		return a
	}
	return b
}

func minByte(a, b byte) byte {
	if a < b {
		return a
	}
	return b
}
