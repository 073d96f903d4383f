// Package lv turns LV positions into store documents: key derivation,
// search tokens, mapping and the per-category summary.
package lv

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// ErrInvalidRecord is matched by every *InvalidRecordError.
var ErrInvalidRecord = errors.New("invalid record")

// InvalidRecordError reports a record that cannot become a document.
type InvalidRecordError struct {
	Index      int // position in the input, -1 when unknown
	Identifier string
	Reason     string
}

func (e *InvalidRecordError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("invalid record #%d (%q): %s", e.Index, e.Identifier, e.Reason)
	}
	return fmt.Sprintf("invalid record (%q): %s", e.Identifier, e.Reason)
}

func (e *InvalidRecordError) Is(target error) bool { return target == ErrInvalidRecord }

// Policy decides what happens to a run when a record is invalid.
type Policy string

const (
	PolicyAbort Policy = "abort"
	PolicySkip  Policy = "skip"
)

// ParsePolicy accepts "abort"/"strict" and "skip".
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "abort", "strict":
		return PolicyAbort, nil
	case "skip":
		return PolicySkip, nil
	}
	return "", errors.Errorf("unknown invalid-record policy %q", s)
}

// KeySeparator replaces '.' in natural identifiers; the store rejects dots in keys.
const KeySeparator = "_"

// DeriveKey maps a natural identifier like "1.1.10" to the store key "1_1_10".
func DeriveKey(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", &InvalidRecordError{Index: -1, Identifier: id, Reason: "empty position_nr"}
	}
	return strings.ReplaceAll(id, ".", KeySeparator), nil
}
