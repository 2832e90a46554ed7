package calculator

import (
	"math"
	"strconv"
	"strings"
	"unicode"
)

// ParseOperands splits text on runs of whitespace and commas and parses each
// token as a finite number, in input order.
func ParseOperands(text string) ([]float64, error) {
	tokens := strings.FieldsFunc(text, isSeparator)

	nums := make([]float64, 0, len(tokens))
	for _, tok := range tokens {
		n, err := strconv.ParseFloat(tok, 64)
		if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
			return nil, ValidationError("%q is not a valid number", tok)
		}
		nums = append(nums, n)
	}

	return nums, nil
}

// ParseOperandsMin is ParseOperands plus an arity check.
func ParseOperandsMin(text string, min int) ([]float64, error) {
	nums, err := ParseOperands(text)
	if err != nil {
		return nil, err
	}

	if len(nums) < min {
		if min == 1 {
			return nil, ValidationError("at least one number is required")
		}
		return nil, ValidationError("at least %d numbers are required, got %d", min, len(nums))
	}

	return nums, nil
}

func isSeparator(r rune) bool {
	return r == ',' || unicode.IsSpace(r)
}
