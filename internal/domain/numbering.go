package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Number prefixes for the yearly sequences.
const (
	PrefixServiceOrder  = "OS"
	PrefixPurchaseOrder = "PC"
)

// FormatNumber renders {prefix}-{year}-{seq} with seq zero-padded to 3 digits.
func FormatNumber(prefix string, year, seq int) string {
	return fmt.Sprintf("%s-%d-%03d", prefix, year, seq)
}

// ParseSequence extracts the sequence part of a number produced by
// FormatNumber for the given prefix and year.
func ParseSequence(number, prefix string, year int) (int, bool) {
	head := fmt.Sprintf("%s-%d-", prefix, year)
	if !strings.HasPrefix(number, head) {
		return 0, false
	}
	seq, err := strconv.Atoi(strings.TrimPrefix(number, head))
	if err != nil || seq <= 0 {
		return 0, false
	}
	return seq, true
}
