package query

import (
	"math"
	"strconv"
	"strings"
)

// Compare orders two cell values naturally: numbers numerically, everything
// else as strings. Numbers sort before non-numbers so the order stays total
// over mixed columns, and numerically equal spellings ("1", "1.0") fall back
// to string order so that equal strings are always adjacent after a sort.
func Compare(a, b string) int {
	na, aNum := number(a)
	nb, bNum := number(b)
	switch {
	case aNum && bNum:
		if na < nb {
			return -1
		}
		if na > nb {
			return 1
		}
		return strings.Compare(a, b)
	case aNum:
		return -1
	case bNum:
		return 1
	}
	return strings.Compare(a, b)
}

func number(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
