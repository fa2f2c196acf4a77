package signature

import (
	"strings"
	"unicode"
)

const (
	keywordAnd = "AND"
	keywordOr  = "OR"
)

// Parse turns expression text into a tree.
//
// Grammar, lowest precedence first:
//
//	Or   := And ("OR" And)*
//	And  := Term ("AND" Term)*
//	Term := "(" Or ")" | Hex
//
// Keywords are case-sensitive and must stand alone as tokens. Operators
// are only recognized at parenthesis depth zero of the span being parsed.
// Hex leaves are normalized to upper case with internal whitespace removed.
func Parse(text string) (*Node, error) {
	if strings.TrimSpace(text) == "" {
		return nil, malformed(text, 0, "empty expression")
	}
	if pos, ok := balanced(text); !ok {
		return nil, malformed(text, pos, "unbalanced parentheses")
	}

	p := &parser{src: text}
	return p.parseOr(0, len(text))
}

// MustParse is like Parse but panics on error. Intended for tests and
// package-level tables.
func MustParse(text string) *Node {
	n, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return n
}

// NormalizePattern upper-cases hex text and strips all whitespace.
func NormalizePattern(s string) string {
	return strings.ToUpper(strings.Join(strings.Fields(s), ""))
}

type parser struct {
	src string
}

// span is a half-open byte range of the source.
type span struct {
	lo, hi int
}

func (p *parser) parseOr(lo, hi int) (*Node, error) {
	parts := p.split(lo, hi, keywordOr)
	if len(parts) == 1 {
		return p.parseAnd(parts[0].lo, parts[0].hi)
	}

	node := &Node{Op: OpOr, Index: -1}
	for _, s := range parts {
		child, err := p.parseAnd(s.lo, s.hi)
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, child)
	}
	return node, nil
}

func (p *parser) parseAnd(lo, hi int) (*Node, error) {
	parts := p.split(lo, hi, keywordAnd)
	if len(parts) == 1 {
		return p.parseTerm(parts[0].lo, parts[0].hi)
	}

	node := &Node{Op: OpAnd, Index: -1}
	for _, s := range parts {
		child, err := p.parseTerm(s.lo, s.hi)
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, child)
	}
	return node, nil
}

func (p *parser) parseTerm(lo, hi int) (*Node, error) {
	lo, hi = p.trim(lo, hi)
	if lo >= hi {
		return nil, malformed(p.src, lo, "missing operand")
	}

	if p.src[lo] == '(' {
		end := p.closing(lo)
		if end != hi-1 {
			return nil, malformed(p.src, end+1, "unexpected text after group")
		}
		return p.parseOr(lo+1, end)
	}

	text := p.src[lo:hi]
	if i := strings.IndexAny(text, "()"); i >= 0 {
		return nil, malformed(p.src, lo+i, "unexpected parenthesis in pattern")
	}
	return NewPattern(NormalizePattern(text)), nil
}

// split cuts [lo,hi) at every depth-zero occurrence of keyword.
func (p *parser) split(lo, hi int, keyword string) []span {
	var parts []span
	depth := 0
	start := lo
	for i := lo; i < hi; i++ {
		switch p.src[i] {
		case '(':
			depth++
			continue
		case ')':
			depth--
			continue
		}
		if depth != 0 || !p.keywordAt(i, lo, hi, keyword) {
			continue
		}
		parts = append(parts, span{start, i})
		start = i + len(keyword)
		i = start - 1
	}
	return append(parts, span{start, hi})
}

// keywordAt reports whether keyword starts at i as a standalone token.
func (p *parser) keywordAt(i, lo, hi int, keyword string) bool {
	end := i + len(keyword)
	if end > hi || p.src[i:end] != keyword {
		return false
	}
	if i > lo && !isDelimiter(p.src[i-1]) {
		return false
	}
	if end < hi && !isDelimiter(p.src[end]) {
		return false
	}
	return true
}

// closing returns the index of the parenthesis matching the one at open.
// The caller has already verified the expression is balanced.
func (p *parser) closing(open int) int {
	depth := 0
	for i := open; i < len(p.src); i++ {
		switch p.src[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return len(p.src) - 1
}

func (p *parser) trim(lo, hi int) (int, int) {
	for lo < hi && isSpace(p.src[lo]) {
		lo++
	}
	for hi > lo && isSpace(p.src[hi-1]) {
		hi--
	}
	return lo, hi
}

// balanced reports whether parentheses pair up, and if not, the offset of
// the first offending parenthesis.
func balanced(s string) (int, bool) {
	var open []int
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			open = append(open, i)
		case ')':
			if len(open) == 0 {
				return i, false
			}
			open = open[:len(open)-1]
		}
	}
	if len(open) > 0 {
		return open[0], false
	}
	return 0, true
}

func isSpace(b byte) bool {
	return b < 0x80 && unicode.IsSpace(rune(b))
}

func isDelimiter(b byte) bool {
	return isSpace(b) || b == '(' || b == ')'
}
