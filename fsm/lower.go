package fsm

import (
	"fmt"

	"github.com/ricohasgit/xgrammar/grammar"
)

// ToGrammar lowers f into b by giving each state its own rule: a
// choice of an empty alternative (if the state accepts) plus one
// `[lo..hi] · rule(to)` alternative per outgoing edge. It returns the
// rule id of f's start state.
func ToGrammar(b *grammar.Builder, f *FSM) grammar.RuleID {
	ruleIDs := make([]grammar.RuleID, f.NumStates())
	for i := range ruleIDs {
		ruleIDs[i] = b.AddEmptyRuleWithHint(fmt.Sprintf("fsm_state_%d", i))
	}

	for _, s := range f.States() {
		var alts []grammar.ExprID

		if f.IsAccept(s) {
			alts = append(alts, b.AddSequence([]grammar.ExprID{b.AddEmptyStr()}))
		}

		for _, e := range f.Edges(s) {
			var cls grammar.ExprID
			if e.Lo == e.Hi {
				cls = b.AddByteString([]byte{e.Lo})
			} else {
				cls = b.AddCharacterClass([][2]rune{{rune(e.Lo), rune(e.Hi)}})
			}
			ref := b.AddRuleRef(ruleIDs[e.To])
			alts = append(alts, b.AddSequence([]grammar.ExprID{cls, ref}))
		}

		if len(alts) == 0 {
			// Unreachable for a correctly built FSM (a dead state with no
			// accept and no edges shouldn't exist after exclusion/product
			// construction), kept as a safe fallback.
			alts = append(alts, b.AddEmptyStr())
		}

		b.UpdateRuleBody(ruleIDs[s], b.AddChoices(alts))
	}

	return ruleIDs[f.Start]
}
