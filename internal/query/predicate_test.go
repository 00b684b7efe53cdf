package query

import (
	"testing"

	"github.com/devblac/eventvault/internal/chunkstore"
)

func TestCompilePredicates_NumericComparisons(t *testing.T) {
	preds, err := CompilePredicates([]string{"value > 10", "value < 20", "value >= 15", "value <= 0xf"})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	row := map[string]string{"arg__value": "15"}
	for _, p := range preds {
		ok, err := p(row)
		if err != nil {
			t.Fatalf("eval: %v", err)
		}
		if !ok {
			t.Fatalf("expected predicate to pass")
		}
	}
}

func TestCompilePredicates_ExactBigIntegers(t *testing.T) {
	preds, err := CompilePredicates([]string{"value > ether(1)"})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	for val, want := range map[string]bool{
		"1000000000000000000": false,
		"1000000000000000001": true,
		"999999999999999999":  false,
		"115792089237316195423570985008687907853269984665640564039457584007913129639935": true,
	} {
		ok, err := preds[0](map[string]string{"arg__value": val})
		if err != nil {
			t.Fatalf("eval %s: %v", val, err)
		}
		if ok != want {
			t.Fatalf("%s > 1e18 = %v, want %v", val, ok, want)
		}
	}
}

func TestCompilePredicates_UnitsAndMultiplication(t *testing.T) {
	for expr, val := range map[string]string{
		"value == gwei(30)":          "30000000000",
		"value == ether(1.5)":        "1500000000000000000",
		"value == 1_000 * 1e6":       "1000000000",
		"value == wei(1e18)":         "1000000000000000000",
		"value != 5":                 "not-a-number",
		"block_number >= 17_000_000": "17000001",
	} {
		preds, err := CompilePredicates([]string{expr})
		if err != nil {
			t.Fatalf("compile %q: %v", expr, err)
		}
		row := map[string]string{"arg__value": val, "block_number": val}
		ok, err := preds[0](row)
		if err != nil || !ok {
			t.Fatalf("%q on %s = %v err=%v", expr, val, ok, err)
		}
	}
}

func TestCompilePredicates_InAndContains(t *testing.T) {
	preds, err := CompilePredicates([]string{"from in 0xAA,0xbb,0xcc", "transaction_hash contains beef"})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	row := map[string]string{"arg__from": "0xbb", "transaction_hash": "0xdeadbeef"}
	for _, p := range preds {
		ok, err := p(row)
		if err != nil {
			t.Fatalf("eval: %v", err)
		}
		if !ok {
			t.Fatalf("expected predicate to pass")
		}
	}
}

func TestCompilePredicates_StringEquality(t *testing.T) {
	preds, err := CompilePredicates([]string{"to == 0xABCDEF"})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	ok, err := preds[0](map[string]string{"arg__to": "0xabcdef"})
	if err != nil || !ok {
		t.Fatalf("expected true, got %v err=%v", ok, err)
	}
	ok, _ = preds[0](map[string]string{"other": "0xabcdef"})
	if ok {
		t.Fatalf("missing column must not match")
	}
}

func TestCompilePredicates_Rejects(t *testing.T) {
	for _, expr := range []string{"value", "value > abc", " > 5", "in a,b"} {
		if _, err := CompilePredicates([]string{expr}); err == nil {
			t.Errorf("expected error for %q", expr)
		}
	}
}

func TestApply(t *testing.T) {
	tbl := chunkstore.NewTable(chunkstore.ArgColumn("value"))
	for i, v := range []string{"5", "50", "500"} {
		_ = tbl.Append(chunkstore.Key{BlockNumber: uint64(i)}, v)
	}
	preds, err := CompilePredicates([]string{"value >= 50", "block_number < 2"})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if err := Apply(tbl, preds); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if tbl.Len() != 1 || tbl.Records[0].Values[0] != "50" {
		t.Fatalf("unexpected records %+v", tbl.Records)
	}
}
