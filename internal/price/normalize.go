package price

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	nonNumeric = regexp.MustCompile(`[^0-9.,]`)
	digitsOnly = regexp.MustCompile(`^[0-9]*$`)

	// Classic thousands grouping: 1-3 digits followed by one or more
	// separator-prefixed groups of exactly 3 digits.
	commaThousands        = regexp.MustCompile(`^[0-9]{1,3}(?:,[0-9]{3})+$`)
	commaThousandsDecimal = regexp.MustCompile(`^[0-9]{1,3}(?:,[0-9]{3})+(?:,[0-9]+)?$`)
	dotThousands          = regexp.MustCompile(`^[0-9]{1,3}(?:\.[0-9]{3})+$`)
	dotThousandsDecimal   = regexp.MustCompile(`^[0-9]{1,3}(?:\.[0-9]{3})+(?:\.[0-9]+)?$`)
)

// Normalize turns an arbitrary snippet of extracted price text into a
// non-negative numeric value. The semantic role of '.' and ',' (thousands
// grouping vs. decimal mark) is inferred from the shape of the token rather
// than a fixed locale, because source pages are uncontrolled and mix
// conventions. Ambiguous shapes fail closed instead of guessing.
func Normalize(raw string) (float64, error) {
	token := strings.TrimSpace(raw)
	if token == "" {
		return 0, fmt.Errorf("empty price string")
	}

	// A single leading sign marks the token as numeric; the output is always
	// the absolute value, so the sign itself is discarded.
	if strings.HasPrefix(token, "-") || strings.HasPrefix(token, "+") {
		token = strings.TrimSpace(token[1:])
	}

	token = nonNumeric.ReplaceAllString(token, "")
	if token == "" {
		return 0, fmt.Errorf("no numeric characters in %q", raw)
	}

	dots := strings.Count(token, ".")
	commas := strings.Count(token, ",")

	var processed string
	var err error
	switch {
	case dots > 0 && commas > 0:
		processed, err = resolveMixed(token)
	case commas > 0:
		processed, err = resolveSingleSeparator(token, ',')
	case dots > 0:
		processed, err = resolveSingleSeparator(token, '.')
	default:
		processed = token
	}
	if err != nil {
		return 0, fmt.Errorf("ambiguous price format %q: %w", raw, err)
	}

	if processed == "" || processed == "." {
		return 0, fmt.Errorf("nothing left to parse in %q", raw)
	}
	if strings.Count(processed, ".") > 1 {
		return 0, fmt.Errorf("multiple decimal points in %q", raw)
	}
	if strings.HasSuffix(processed, ".") && len(processed) > 1 {
		processed = processed[:len(processed)-1]
	}

	value, err := strconv.ParseFloat(processed, 64)
	if err != nil {
		return 0, fmt.Errorf("cannot parse %q as a number: %w", raw, err)
	}
	return math.Abs(value), nil
}

// resolveMixed handles tokens containing both '.' and ','. Whichever
// separator occurs last is the decimal mark; the other is thousands
// grouping and is removed.
func resolveMixed(token string) (string, error) {
	lastDot := strings.LastIndexByte(token, '.')
	lastComma := strings.LastIndexByte(token, ',')

	switch {
	case lastDot > lastComma:
		if !digitsOnly.MatchString(token[lastDot+1:]) {
			return "", fmt.Errorf("invalid decimal part after '.'")
		}
		return strings.ReplaceAll(token, ",", ""), nil
	case lastComma > lastDot:
		if !digitsOnly.MatchString(token[lastComma+1:]) {
			return "", fmt.Errorf("invalid decimal part after ','")
		}
		stripped := strings.ReplaceAll(token, ".", "")
		return strings.ReplaceAll(stripped, ",", "."), nil
	default:
		return "", fmt.Errorf("separator positions conflict")
	}
}

// resolveSingleSeparator handles tokens containing only one separator kind,
// which may be thousands grouping, a decimal mark, or both.
func resolveSingleSeparator(token string, sep byte) (string, error) {
	thousands, thousandsDecimal := commaThousands, commaThousandsDecimal
	if sep == '.' {
		thousands, thousandsDecimal = dotThousands, dotThousandsDecimal
	}

	// Pure thousands grouping collapses to an integer.
	if thousands.MatchString(token) {
		return strings.ReplaceAll(token, string(sep), ""), nil
	}

	last := strings.LastIndexByte(token, sep)
	if !digitsOnly.MatchString(token[last+1:]) {
		return "", fmt.Errorf("non-digit decimal part")
	}
	if strings.Count(token, string(sep)) > 1 && !thousandsDecimal.MatchString(token) {
		// e.g. "1,2,3" — neither grouping nor a grouped decimal
		return "", fmt.Errorf("unclear separator pattern")
	}

	// The last separator is the decimal mark; any earlier ones were
	// validated above as grouping and are dropped.
	head := strings.ReplaceAll(token[:last], string(sep), "")
	return head + "." + token[last+1:], nil
}
