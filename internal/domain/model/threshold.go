package model

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrInvalidThreshold is returned when a rule's persisted threshold is not
// a base-10 non-negative integer. Rules carrying such values are skipped
// during verification rather than evaluated against garbage data.
var ErrInvalidThreshold = errors.New("invalid threshold")

// ParseThreshold decodes a rule's persisted threshold (stored as text)
// into its numeric comparison value. Only base-10 non-negative integers
// are accepted; leading signs, whitespace, and non-digit characters all fail.
func ParseThreshold(raw string) (int, error) {
	if raw == "" {
		return 0, fmt.Errorf("%w: empty string", ErrInvalidThreshold)
	}
	for _, ch := range raw {
		if ch < '0' || ch > '9' {
			return 0, fmt.Errorf("%w: %q is not a base-10 non-negative integer", ErrInvalidThreshold, raw)
		}
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrInvalidThreshold, raw, err)
	}
	return n, nil
}
