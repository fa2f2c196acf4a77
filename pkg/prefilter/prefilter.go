// Package prefilter holds the cheap checks that run ahead of full
// signature matching: a corpus-level keyword filter that narrows which
// signatures can possibly match a buffer, and a per-signature byte table
// that lets the streaming matcher skip input.
package prefilter

import (
	"sort"

	"github.com/cloudflare/ahocorasick"
)

// Prefilter uses Aho-Corasick over signature anchors to select candidate
// signatures for a buffer. Signature i is a candidate when any of its
// anchor patterns occurs in the buffer.
type Prefilter struct {
	matcher       *ahocorasick.Matcher
	anchors       [][]byte // anchor at each index
	anchorSigs    [][]int  // anchor index -> signatures needing it
	noAnchorSigs  []int    // signatures without anchors (always checked)
	numSignatures int
}

// New creates a prefilter. anchors[i] lists the anchor byte patterns of
// signature i; a signature with no anchors is always a candidate.
func New(anchors [][][]byte) *Prefilter {
	pf := &Prefilter{numSignatures: len(anchors)}

	// Collect distinct anchors and build mapping
	seen := make(map[string]int)
	for sig, list := range anchors {
		if len(list) == 0 {
			pf.noAnchorSigs = append(pf.noAnchorSigs, sig)
			continue
		}
		for _, a := range list {
			idx, ok := seen[string(a)]
			if !ok {
				idx = len(pf.anchors)
				seen[string(a)] = idx
				pf.anchors = append(pf.anchors, a)
				pf.anchorSigs = append(pf.anchorSigs, nil)
			}
			pf.anchorSigs[idx] = append(pf.anchorSigs[idx], sig)
		}
	}

	if len(pf.anchors) > 0 {
		pf.matcher = ahocorasick.NewMatcher(pf.anchors)
	}

	return pf
}

// Filter returns the sorted indices of signatures that might match content.
func (pf *Prefilter) Filter(content []byte) []int {
	result := make([]int, 0, len(pf.noAnchorSigs))
	result = append(result, pf.noAnchorSigs...)

	if pf.matcher == nil {
		return result
	}

	marked := make([]bool, pf.numSignatures)
	for _, sig := range pf.noAnchorSigs {
		marked[sig] = true
	}

	for _, hit := range pf.matcher.Match(content) {
		for _, sig := range pf.anchorSigs[hit] {
			if !marked[sig] {
				marked[sig] = true
				result = append(result, sig)
			}
		}
	}

	sort.Ints(result)
	return result
}

// Anchors returns the number of distinct anchor patterns.
func (pf *Prefilter) Anchors() int {
	return len(pf.anchors)
}
