package engine

// SignatureStatus represents how a signature fared on one target
type SignatureStatus int

const (
	// SignatureClean indicates the signature was fully evaluated and did not match
	SignatureClean SignatureStatus = iota
	// SignatureMatched indicates the signature matched
	SignatureMatched
	// SignatureSkipped indicates the scan ended before the signature was decided
	SignatureSkipped
	// SignatureError indicates the matcher failed for this signature
	SignatureError
)

// String returns the string representation of SignatureStatus
func (s SignatureStatus) String() string {
	switch s {
	case SignatureClean:
		return "clean"
	case SignatureMatched:
		return "matched"
	case SignatureSkipped:
		return "skipped"
	case SignatureError:
		return "error"
	default:
		return "unknown"
	}
}

// Summary provides aggregate statistics for an engine
type Summary struct {
	TotalSignatures    int // Signatures in the corpus
	CompiledSignatures int // Signatures ready to scan
	FailedSignatures   int // Signatures skipped because they failed to compile
	DistinctPrograms   int // Distinct compiled expressions
	DistinctPatterns   int // Patterns summed over distinct expressions
}
