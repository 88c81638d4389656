package ingest

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"unicode"
)

var errEmptyNumber = errors.New("empty value")

// parseNumber reads amounts the way spreadsheet exports write them: currency
// symbols or codes, thousands separators of either convention, parentheses or
// a trailing minus for negatives.
func parseNumber(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errEmptyNumber
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}

	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == '\'' || unicode.Is(unicode.Sc, r) {
			return -1
		}
		return r
	}, s)
	s = strings.TrimFunc(s, unicode.IsLetter)

	if strings.HasSuffix(s, "-") {
		negative = !negative
		s = strings.TrimSuffix(s, "-")
	}
	if strings.HasPrefix(s, "-") {
		negative = !negative
		s = s[1:]
	} else {
		s = strings.TrimPrefix(s, "+")
	}
	if s == "" {
		return 0, errEmptyNumber
	}

	for _, r := range s {
		if (r < '0' || r > '9') && r != '.' && r != ',' {
			return 0, strconv.ErrSyntax
		}
	}

	s = normalizeSeparators(s)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, strconv.ErrRange
	}
	if negative {
		v = -v
	}
	return v, nil
}

// normalizeSeparators rewrites s to use '.' as the only decimal separator
func normalizeSeparators(s string) string {
	dots := strings.Count(s, ".")
	commas := strings.Count(s, ",")

	switch {
	case dots > 0 && commas > 0:
		// the separator appearing last is the decimal one
		if strings.LastIndex(s, ",") > strings.LastIndex(s, ".") {
			s = strings.ReplaceAll(s, ".", "")
			return strings.Replace(s, ",", ".", 1)
		}
		return strings.ReplaceAll(s, ",", "")
	case commas > 1:
		return strings.ReplaceAll(s, ",", "")
	case commas == 1:
		i := strings.Index(s, ",")
		if len(s)-i-1 == 3 && i > 0 {
			return strings.Replace(s, ",", "", 1)
		}
		return strings.Replace(s, ",", ".", 1)
	case dots > 1:
		return strings.ReplaceAll(s, ".", "")
	}
	return s
}
