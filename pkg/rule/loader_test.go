package rule

import (
	"errors"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/praetorian-inc/fdsec/pkg/signature"
)

func TestFromLines(t *testing.T) {
	loader := NewLoader()

	sigs, errs := loader.FromLines([]string{
		"# comment",
		"4D5A AND DEADBEEF",
		"",
		"   ",
		"(AABB AND CCDD) OR EEFF\r",
		"4D5A AND",
		"ABC",
	})

	if len(sigs) != 2 {
		t.Fatalf("expected 2 signatures, got %d", len(sigs))
	}
	if sigs[0].ID != "line.2" || sigs[1].ID != "line.5" {
		t.Errorf("unexpected IDs %s, %s", sigs[0].ID, sigs[1].ID)
	}
	if sigs[1].Expression != "(AABB AND CCDD) OR EEFF" {
		t.Errorf("expected trimmed expression, got %q", sigs[1].Expression)
	}
	if sigs[0].StructuralID == "" {
		t.Error("expected StructuralID to be computed")
	}

	if len(errs) != 2 {
		t.Fatalf("expected 2 load errors, got %d", len(errs))
	}
	if errs[0].Line != 6 || !errors.Is(errs[0], signature.ErrMalformedSignature) {
		t.Errorf("expected malformed error on line 6, got %v", errs[0])
	}
	if errs[1].Line != 7 || !errors.Is(errs[1], signature.ErrPatternDecode) {
		t.Errorf("expected decode error on line 7, got %v", errs[1])
	}
	if !strings.HasPrefix(errs[1].Error(), "line 7:") {
		t.Errorf("unexpected error text %q", errs[1].Error())
	}
}

func TestLoadFile_LineFormat(t *testing.T) {
	sigs, errs, err := NewLoader().LoadFile("testdata/corpus.txt")
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if len(sigs) != 3 {
		t.Errorf("expected 3 signatures, got %d", len(sigs))
	}
	if len(errs) != 2 {
		t.Errorf("expected 2 load errors, got %d", len(errs))
	}
	if sigs[2].Expression != "CAFE BABE" {
		t.Errorf("expected internal whitespace to be preserved in the expression, got %q", sigs[2].Expression)
	}
}

func TestLoadFile_Missing(t *testing.T) {
	_, _, err := NewLoader().LoadFile("testdata/does-not-exist.txt")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadYAML(t *testing.T) {
	data := `signatures:
  - id: vendor.dropper.1
    name: Dropper
    severity: high
    expression: 4D5A AND (DEADBEEF OR CAFEBABE)
    description: |
      Drops a second stage.
    references:
      - https://example.com/dropper
    categories:
      - dropper
  - id: vendor.broken.1
    expression: 4D5A AND
  - name: no id
    expression: 4D5A
`
	sigs, errs, err := NewLoader().LoadYAML([]byte(data))
	if err != nil {
		t.Fatalf("LoadYAML failed: %v", err)
	}
	if len(sigs) != 1 {
		t.Fatalf("expected 1 signature, got %d", len(sigs))
	}

	s := sigs[0]
	if s.ID != "vendor.dropper.1" || s.Name != "Dropper" || s.Severity != "high" {
		t.Errorf("unexpected signature %+v", s)
	}
	if s.Description != "Drops a second stage." {
		t.Errorf("expected trimmed description, got %q", s.Description)
	}
	if len(s.References) != 1 || len(s.Categories) != 1 {
		t.Errorf("expected references and categories to be carried over")
	}
	if s.StructuralID != s.ComputeStructuralID() {
		t.Error("expected StructuralID to be computed")
	}

	if len(errs) != 2 {
		t.Fatalf("expected 2 load errors, got %d", len(errs))
	}
	if errs[0].ID != "vendor.broken.1" || !errors.Is(errs[0], signature.ErrMalformedSignature) {
		t.Errorf("unexpected first error %v", errs[0])
	}
}

func TestLoadYAML_Invalid(t *testing.T) {
	if _, _, err := NewLoader().LoadYAML([]byte("signatures: [")); err == nil {
		t.Error("expected error for invalid YAML")
	}
	if _, _, err := NewLoader().LoadYAML([]byte("other: 1")); err == nil {
		t.Error("expected error for YAML without signatures")
	}
}

func TestLoadBuiltin(t *testing.T) {
	sigs, err := NewLoader().LoadBuiltin()
	if err != nil {
		t.Fatalf("LoadBuiltin failed: %v", err)
	}
	if len(sigs) == 0 {
		t.Fatal("expected built-in signatures")
	}

	found := false
	for _, s := range sigs {
		if s.ID == "fdsec.eicar.1" {
			found = true
		}
		if err := ValidateSignature(s); err != nil {
			t.Errorf("built-in signature %s is invalid: %v", s.ID, err)
		}
	}
	if !found {
		t.Error("expected the EICAR signature to be built in")
	}
}

func TestLoadBuiltin_CustomFS(t *testing.T) {
	fsys := fstest.MapFS{
		"signatures/a.yml":    {Data: []byte("signatures:\n  - id: a.1\n    expression: AABB\n")},
		"signatures/b.yaml":   {Data: []byte("signatures:\n  - id: b.1\n    expression: CCDD OR EEFF\n")},
		"signatures/notes.md": {Data: []byte("ignored")},
	}

	sigs, err := NewLoaderWithFS(fsys).LoadBuiltin()
	if err != nil {
		t.Fatalf("LoadBuiltin failed: %v", err)
	}
	if len(sigs) != 2 {
		t.Errorf("expected 2 signatures, got %d", len(sigs))
	}
}

func TestLoadBuiltin_RejectsInvalid(t *testing.T) {
	fsys := fstest.MapFS{
		"signatures/bad.yml": {Data: []byte("signatures:\n  - id: bad.1\n    expression: (AABB\n")},
	}
	if _, err := NewLoaderWithFS(fsys).LoadBuiltin(); err == nil {
		t.Error("expected error for invalid built-in signature")
	}
}

func TestLoadBuiltin_EmptyFS(t *testing.T) {
	if _, err := NewLoaderWithFS(fstest.MapFS{}).LoadBuiltin(); err == nil {
		t.Error("expected error when the signatures directory is missing")
	}
}

func TestIsYAML(t *testing.T) {
	for path, want := range map[string]bool{
		"a.yml":      true,
		"a.YAML":     true,
		"a.txt":      false,
		"signatures": false,
	} {
		if got := IsYAML(path); got != want {
			t.Errorf("IsYAML(%q) = %v, want %v", path, got, want)
		}
	}
}
