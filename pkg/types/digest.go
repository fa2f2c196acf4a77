package types

import (
	"crypto/sha256"
	"database/sql/driver"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// Digest is a SHA-256 content hash (32 bytes).
type Digest [32]byte

// ComputeDigest computes SHA-256 of content.
func ComputeDigest(content []byte) Digest {
	return Digest(sha256.Sum256(content))
}

// Hex returns 64-character lowercase hex string.
func (d Digest) Hex() string {
	return hex.EncodeToString(d[:])
}

// String implements Stringer (returns Hex()).
func (d Digest) String() string {
	return d.Hex()
}

// IsZero reports whether d is the zero value.
func (d Digest) IsZero() bool {
	return d == Digest{}
}

// ParseDigest parses a 64-char hex string to Digest. Case and surrounding
// whitespace are ignored.
func ParseDigest(hexStr string) (Digest, error) {
	hexStr = strings.ToLower(strings.TrimSpace(hexStr))
	if len(hexStr) != 64 {
		return Digest{}, fmt.Errorf("invalid digest length: expected 64, got %d", len(hexStr))
	}

	decoded, err := hex.DecodeString(hexStr)
	if err != nil {
		return Digest{}, fmt.Errorf("invalid hex string: %w", err)
	}

	var d Digest
	copy(d[:], decoded)
	return d, nil
}

// MarshalJSON implements json.Marshaler.
func (d Digest) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Hex())
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Digest) UnmarshalJSON(data []byte) error {
	var hexStr string
	if err := json.Unmarshal(data, &hexStr); err != nil {
		return err
	}

	parsed, err := ParseDigest(hexStr)
	if err != nil {
		return err
	}

	*d = parsed
	return nil
}

// Value implements driver.Valuer for SQL serialization.
func (d Digest) Value() (driver.Value, error) {
	return d.Hex(), nil
}

// Scan implements sql.Scanner for SQL deserialization.
func (d *Digest) Scan(value interface{}) error {
	if value == nil {
		return fmt.Errorf("cannot scan nil into Digest")
	}

	var hexStr string
	switch v := value.(type) {
	case string:
		hexStr = v
	case []byte:
		hexStr = string(v)
	default:
		return fmt.Errorf("cannot scan type %T into Digest", value)
	}

	parsed, err := ParseDigest(hexStr)
	if err != nil {
		return err
	}

	*d = parsed
	return nil
}
