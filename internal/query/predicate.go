// Package query filters event tables with small comparison expressions.
package query

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/devblac/eventvault/internal/chunkstore"
)

// Predicate evaluates whether a row satisfies a condition.
type Predicate func(row map[string]string) (bool, error)

// CompilePredicates parses simple expressions into executable predicates.
// Supported operators: ==, !=, >, <, >=, <=, in, contains.
// Numbers compare exactly, so uint256 amounts never lose precision.
// Examples:
//
//	"value > 10"
//	"value >= ether(1.5)"
//	"from in 0xaa,0xbb"
//	"transaction_hash contains beef"
func CompilePredicates(exprs []string) ([]Predicate, error) {
	var preds []Predicate
	for _, raw := range exprs {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		p, err := compile(raw)
		if err != nil {
			return nil, err
		}
		preds = append(preds, p)
	}
	return preds, nil
}

func compile(expr string) (Predicate, error) {
	if strings.Contains(expr, " in ") {
		parts := strings.SplitN(expr, " in ", 2)
		field := strings.TrimSpace(parts[0])
		if field == "" {
			return nil, fmt.Errorf("invalid in expression: %s", expr)
		}
		values := map[string]struct{}{}
		for _, v := range strings.Split(parts[1], ",") {
			v = strings.TrimSpace(v)
			if v == "" {
				continue
			}
			values[strings.ToLower(v)] = struct{}{}
		}
		return func(row map[string]string) (bool, error) {
			val, ok := lookup(row, field)
			if !ok {
				return false, nil
			}
			_, hit := values[strings.ToLower(val)]
			return hit, nil
		}, nil
	}

	if strings.Contains(expr, " contains ") {
		parts := strings.SplitN(expr, " contains ", 2)
		field := strings.TrimSpace(parts[0])
		needle := strings.TrimSpace(parts[1])
		if field == "" {
			return nil, fmt.Errorf("invalid contains expression: %s", expr)
		}
		return func(row map[string]string) (bool, error) {
			val, ok := lookup(row, field)
			if !ok {
				return false, nil
			}
			return strings.Contains(val, needle), nil
		}, nil
	}

	var op string
	switch {
	case strings.Contains(expr, "=="):
		op = "=="
	case strings.Contains(expr, "!="):
		op = "!="
	case strings.Contains(expr, ">="):
		op = ">="
	case strings.Contains(expr, "<="):
		op = "<="
	case strings.Contains(expr, ">"):
		op = ">"
	case strings.Contains(expr, "<"):
		op = "<"
	default:
		return nil, fmt.Errorf("unsupported expression: %s", expr)
	}

	parts := strings.SplitN(expr, op, 2)
	field := strings.TrimSpace(parts[0])
	rhsRaw := strings.TrimSpace(parts[1])
	if field == "" || rhsRaw == "" {
		return nil, fmt.Errorf("invalid expression: %s", expr)
	}

	numRHS, rhsIsNum := evaluateNumber(rhsRaw)
	if !rhsIsNum && op != "==" && op != "!=" {
		return nil, fmt.Errorf("operator %s needs a numeric right-hand side: %s", op, expr)
	}

	return func(row map[string]string) (bool, error) {
		val, ok := lookup(row, field)
		if !ok {
			return false, nil
		}

		if rhsIsNum {
			lhs, ok := parseNumber(val)
			if !ok {
				return op == "!=", nil
			}
			c := lhs.Cmp(numRHS)
			switch op {
			case "==":
				return c == 0, nil
			case "!=":
				return c != 0, nil
			case ">":
				return c > 0, nil
			case "<":
				return c < 0, nil
			case ">=":
				return c >= 0, nil
			case "<=":
				return c <= 0, nil
			}
		}

		switch op {
		case "==":
			return strings.EqualFold(val, rhsRaw), nil
		default:
			return !strings.EqualFold(val, rhsRaw), nil
		}
	}, nil
}

// lookup finds a column by its name or, for event arguments, by the bare argument name.
func lookup(row map[string]string, field string) (string, bool) {
	if v, ok := row[field]; ok {
		return v, true
	}
	v, ok := row[chunkstore.ArgColumn(field)]
	return v, ok
}

var unitScale = map[string]*big.Rat{
	"wei(":   big.NewRat(1, 1),
	"gwei(":  new(big.Rat).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(9), nil)),
	"ether(": new(big.Rat).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)),
}

// evaluateNumber evaluates a numeric expression, supporting:
// - Simple numbers: "100", "1e6", "1_000_000", "0xff"
// - Unit helpers: "wei(1e18)", "gwei(30)", "ether(1.5)"
// - Multiplication: "1_000_000 * 1e6"
func evaluateNumber(s string) (*big.Rat, bool) {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "_", "")

	if strings.Contains(s, "*") {
		parts := strings.Split(s, "*")
		if len(parts) != 2 {
			return nil, false
		}
		a, ok1 := evaluateNumber(parts[0])
		b, ok2 := evaluateNumber(parts[1])
		if !ok1 || !ok2 {
			return nil, false
		}
		return new(big.Rat).Mul(a, b), true
	}

	for prefix, scale := range unitScale {
		if strings.HasPrefix(s, prefix) && strings.HasSuffix(s, ")") {
			v, ok := evaluateNumber(s[len(prefix) : len(s)-1])
			if !ok {
				return nil, false
			}
			return new(big.Rat).Mul(v, scale), true
		}
	}

	return parseNumber(s)
}

// parseNumber reads a decimal, scientific, or 0x-prefixed hex literal.
func parseNumber(s string) (*big.Rat, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, false
	}
	lower := strings.ToLower(s)
	if strings.HasPrefix(lower, "0x") {
		n, ok := new(big.Int).SetString(lower[2:], 16)
		if !ok {
			return nil, false
		}
		return new(big.Rat).SetInt(n), true
	}
	if strings.Contains(s, "/") {
		return nil, false
	}
	r, ok := new(big.Rat).SetString(s)
	return r, ok
}

// Apply keeps only the records of t that satisfy every predicate.
func Apply(t *chunkstore.Table, preds []Predicate) error {
	if len(preds) == 0 {
		return nil
	}
	var evalErr error
	t.Filter(func(i int) bool {
		if evalErr != nil {
			return false
		}
		row := t.Row(i)
		for _, p := range preds {
			ok, err := p(row)
			if err != nil {
				evalErr = err
				return false
			}
			if !ok {
				return false
			}
		}
		return true
	})
	return evalErr
}
