// Package automaton implements an Aho-Corasick multi-pattern matcher over
// raw bytes.
//
// Nodes live in a flat arena and are addressed by int32 state numbers; the
// root is state 0. A zero entry in the transition table means "no edge",
// which is unambiguous because no edge ever leads back to the root.
package automaton

// Root is the start state.
const Root int32 = 0

// Automaton is immutable after Build and safe for concurrent use.
type Automaton struct {
	next [][256]int32
	fail []int32
	out  [][]int

	patterns int
	maxLen   int
	starts   [256]bool
}

// Build constructs the automaton for patterns. The index of a pattern in
// the slice is the value reported in output sets. Empty patterns are
// ignored.
func Build(patterns [][]byte) *Automaton {
	a := &Automaton{patterns: len(patterns)}
	a.grow()

	for idx, p := range patterns {
		if len(p) == 0 {
			continue
		}
		a.starts[p[0]] = true
		if len(p) > a.maxLen {
			a.maxLen = len(p)
		}

		s := Root
		for _, b := range p {
			n := a.next[s][b]
			if n == 0 {
				n = a.grow()
				a.next[s][b] = n
			}
			s = n
		}
		a.out[s] = append(a.out[s], idx)
	}

	a.link()
	return a
}

func (a *Automaton) grow() int32 {
	a.next = append(a.next, [256]int32{})
	a.fail = append(a.fail, Root)
	a.out = append(a.out, nil)
	return int32(len(a.next) - 1)
}

// link computes failure links breadth-first and merges each node's
// failure-target outputs into its own, so every state reports all
// patterns ending at the current position.
func (a *Automaton) link() {
	queue := make([]int32, 0, len(a.next))
	for b := 0; b < 256; b++ {
		if c := a.next[Root][b]; c != 0 {
			a.fail[c] = Root
			queue = append(queue, c)
		}
	}

	for head := 0; head < len(queue); head++ {
		s := queue[head]
		for b := 0; b < 256; b++ {
			c := a.next[s][b]
			if c == 0 {
				continue
			}

			f := a.fail[s]
			for f != Root && a.next[f][b] == 0 {
				f = a.fail[f]
			}
			target := a.next[f][b]
			a.fail[c] = target
			if len(a.out[target]) > 0 {
				a.out[c] = append(a.out[c], a.out[target]...)
			}
			queue = append(queue, c)
		}
	}
}

// Step advances from state on byte b and returns the new state together
// with the indices of every pattern that ends there. The returned slice is
// shared and must not be modified.
func (a *Automaton) Step(state int32, b byte) (int32, []int) {
	for state != Root && a.next[state][b] == 0 {
		state = a.fail[state]
	}
	state = a.next[state][b]
	return state, a.out[state]
}

// Outputs returns the pattern indices reported at state.
func (a *Automaton) Outputs(state int32) []int {
	return a.out[state]
}

// Fail returns the failure link of state.
func (a *Automaton) Fail(state int32) int32 {
	return a.fail[state]
}

// Len returns the number of states, including the root.
func (a *Automaton) Len() int {
	return len(a.next)
}

// Patterns returns the number of patterns the automaton was built from.
func (a *Automaton) Patterns() int {
	return a.patterns
}

// MaxPatternLen returns the length of the longest pattern.
func (a *Automaton) MaxPatternLen() int {
	return a.maxLen
}

// Starts reports, per byte value, whether some pattern begins with it.
// From the root, any other byte leaves the automaton at the root.
func (a *Automaton) Starts() [256]bool {
	return a.starts
}
