// Package grocery builds the weekly shopping list from a generated meal plan.
package grocery

import (
	"errors"
	"strconv"
	"strings"
	"unicode"

	"alcyxob/meal-planner/internal/domain"
)

// ErrNotNumeric is returned when an amount cannot be read as a number.
var ErrNotNumeric = errors.New("amount is not numeric")

var vulgarFractions = map[rune]float64{
	'¼': 0.25, '½': 0.5, '¾': 0.75,
	'⅓': 1.0 / 3, '⅔': 2.0 / 3,
	'⅕': 0.2, '⅖': 0.4, '⅗': 0.6, '⅘': 0.8,
	'⅙': 1.0 / 6, '⅚': 5.0 / 6,
	'⅛': 0.125, '⅜': 0.375, '⅝': 0.625, '⅞': 0.875,
}

// CanonicalUnit lower-cases and trims. Units are never converted into one another.
func CanonicalUnit(unit string) string {
	return strings.ToLower(strings.TrimSpace(unit))
}

// Normalize parses a free-text amount and canonicalizes its unit.
func Normalize(amount, unit string) (domain.Quantity, error) {
	v, err := ParseAmount(amount)
	if err != nil {
		return domain.Quantity{}, err
	}
	return domain.Quantity{Amount: v, Unit: CanonicalUnit(unit)}, nil
}

// ParseAmount accepts "2", "1.5", "1,5", "1,000", "1/2", "1 1/2", "½" and "1½".
// Ranges and words are ErrNotNumeric.
func ParseAmount(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrNotNumeric
	}

	// "1½" -> "1 ½"
	var b strings.Builder
	for i, r := range s {
		if _, ok := vulgarFractions[r]; ok && i > 0 && unicode.IsDigit(rune(s[i-1])) {
			b.WriteRune(' ')
		}
		b.WriteRune(r)
	}

	fields := strings.Fields(b.String())
	switch len(fields) {
	case 1:
		return parseSimple(fields[0])
	case 2:
		whole, err := parseWhole(fields[0])
		if err != nil {
			return 0, err
		}
		frac, err := parseFraction(fields[1])
		if err != nil {
			return 0, err
		}
		return whole + frac, nil
	}
	return 0, ErrNotNumeric
}

func parseSimple(f string) (float64, error) {
	if v, err := parseFraction(f); err == nil {
		return v, nil
	}
	return parseDecimal(f)
}

func parseWhole(f string) (float64, error) {
	n, err := strconv.Atoi(f)
	if err != nil || n < 0 {
		return 0, ErrNotNumeric
	}
	return float64(n), nil
}

// parseDecimal reads "1.5" and "1,5". Commas followed by groups of exactly
// three digits separate thousands instead: "1,000" and "1,250.5".
func parseDecimal(f string) (float64, error) {
	if groups := strings.Split(f, ","); len(groups) > 1 {
		if thousands(groups) {
			f = strings.Join(groups, "")
		} else if len(groups) == 2 {
			f = groups[0] + "." + groups[1]
		} else {
			return 0, ErrNotNumeric
		}
	}
	for _, r := range f {
		if !unicode.IsDigit(r) && r != '.' {
			return 0, ErrNotNumeric
		}
	}
	v, err := strconv.ParseFloat(f, 64)
	if err != nil {
		return 0, ErrNotNumeric
	}
	return v, nil
}

func thousands(groups []string) bool {
	if groups[0] == "" || groups[0][0] == '0' || len(groups[0]) > 3 {
		return false
	}
	for i, g := range groups[1:] {
		if i == len(groups)-2 {
			g, _, _ = strings.Cut(g, ".")
		}
		if len(g) != 3 {
			return false
		}
	}
	return true
}

func parseFraction(f string) (float64, error) {
	if r := []rune(f); len(r) == 1 {
		if v, ok := vulgarFractions[r[0]]; ok {
			return v, nil
		}
	}
	num, den, ok := strings.Cut(f, "/")
	if !ok {
		return 0, ErrNotNumeric
	}
	n, err := strconv.Atoi(num)
	if err != nil || n < 0 {
		return 0, ErrNotNumeric
	}
	d, err := strconv.Atoi(den)
	if err != nil || d <= 0 {
		return 0, ErrNotNumeric
	}
	return float64(n) / float64(d), nil
}
