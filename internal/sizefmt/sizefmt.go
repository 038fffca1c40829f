// Package sizefmt renders byte counts as short human-readable strings.
package sizefmt

import (
	"strconv"
	"strings"
)

// Units are the suffixes used by Format, in ascending order of 1024 multiples.
//
//nolint:gochecknoglobals // Config constant
var Units = []string{"B", "KB", "MB", "GB", "TB", "PB", "EB", "ZB", "YB"}

// Format converts n to a string like "1.5 KB" using 1024 as the base.
// The value is rounded to two decimals, with trailing zeros and a trailing
// decimal point removed. Values past the largest unit stay in YB.
func Format(n uint64) string {
	value := float64(n)
	unit := 0

	for value >= 1024 && unit < len(Units)-1 {
		value /= 1024
		unit++
	}

	s := strconv.FormatFloat(value, 'f', 2, 64)
	s = strings.TrimRight(s, "0")
	s = strings.TrimSuffix(s, ".")

	return s + " " + Units[unit]
}

// FormatInt is Format for signed sizes. Negative values are treated as zero.
func FormatInt(n int64) string {
	if n < 0 {
		return Format(0)
	}

	return Format(uint64(n))
}
