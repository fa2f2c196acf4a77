package rule

import (
	"fmt"

	"github.com/praetorian-inc/fdsec/pkg/signature"
	"github.com/praetorian-inc/fdsec/pkg/types"
)

// Check parses expr and decodes every pattern in it. It returns the
// parser's error unchanged, so callers can test it against
// signature.ErrMalformedSignature and signature.ErrPatternDecode.
func Check(expr string) error {
	tree, err := signature.Parse(expr)
	if err != nil {
		return err
	}
	_, err = signature.NewRegistry(tree).Decode()
	return err
}

// ValidateSignature checks signature consistency and required fields.
func ValidateSignature(s *types.Signature) error {
	if s == nil {
		return fmt.Errorf("signature is nil")
	}
	if s.ID == "" {
		return fmt.Errorf("signature ID is required")
	}
	if s.Expression == "" {
		return fmt.Errorf("signature %s has no expression", s.ID)
	}

	if err := Check(s.Expression); err != nil {
		return fmt.Errorf("invalid expression for signature %s: %w", s.ID, err)
	}

	expectedID := s.ComputeStructuralID()
	if s.StructuralID != "" && s.StructuralID != expectedID {
		return fmt.Errorf("signature %s has inconsistent StructuralID: got %s, expected %s",
			s.ID, s.StructuralID, expectedID)
	}

	return nil
}

// ValidateCorpus validates every signature and rejects duplicate IDs. It
// returns one error per problem found.
func ValidateCorpus(sigs []*types.Signature) []error {
	var errs []error
	seen := make(map[string]bool)
	for _, s := range sigs {
		if err := ValidateSignature(s); err != nil {
			errs = append(errs, err)
			continue
		}
		if seen[s.ID] {
			errs = append(errs, fmt.Errorf("duplicate signature ID: %s", s.ID))
		}
		seen[s.ID] = true
	}
	return errs
}
