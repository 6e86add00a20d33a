package money

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"
)

func TestParse(t *testing.T) {
	cases := []struct {
		in   string
		want Money
		err  error
	}{
		{in: "150", want: 15_000},
		{in: "150.5", want: 15_050},
		{in: "0.01", want: 1},
		{in: " 42.10 ", want: 4_210},
		{in: "-3", want: -300},
		{in: "1.001", err: ErrInvalid},
		{in: "abc", err: ErrInvalid},
		{in: "", err: ErrInvalid},
		{in: "999999999999999999999", err: ErrOverflow},
	}
	for _, tc := range cases {
		got, err := Parse(tc.in)
		if tc.err != nil {
			if !errors.Is(err, tc.err) {
				t.Fatalf("Parse(%q) err=%v want %v", tc.in, err, tc.err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("Parse(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("Parse(%q)=%d want %d", tc.in, got, tc.want)
		}
	}
}

func TestArithmetic(t *testing.T) {
	a := FromMinor(10_000)
	b := FromMinor(3_000)

	sum, err := a.Add(b)
	if err != nil || sum != 13_000 {
		t.Fatalf("add: %d %v", sum, err)
	}
	diff, err := a.Sub(b)
	if err != nil || diff != 7_000 {
		t.Fatalf("sub: %d %v", diff, err)
	}
	if _, err := b.Sub(a); !errors.Is(err, ErrNegative) {
		t.Fatalf("expected ErrNegative, got %v", err)
	}
	if _, err := FromMinor(math.MaxInt64).Add(1); !errors.Is(err, ErrOverflow) {
		t.Fatalf("expected ErrOverflow, got %v", err)
	}
	if _, err := FromMajor(math.MaxInt64 / 10); !errors.Is(err, ErrOverflow) {
		t.Fatalf("expected ErrOverflow from FromMajor, got %v", err)
	}
}

func TestFormatting(t *testing.T) {
	m := FromMinor(5_000_000)
	if got := m.String(); got != "50000.00" {
		t.Fatalf("String()=%s", got)
	}
	if got := FromMinor(7).Format("INR"); got != "INR 0.07" {
		t.Fatalf("Format()=%s", got)
	}
	if got := FromMinor(7).Format(""); got != "0.07" {
		t.Fatalf("Format(\"\")=%s", got)
	}
}

func TestJSON(t *testing.T) {
	var payload struct {
		Amount Money `json:"amount"`
	}
	if err := json.Unmarshal([]byte(`{"amount": 30.25}`), &payload); err != nil {
		t.Fatalf("unmarshal number: %v", err)
	}
	if payload.Amount != 3_025 {
		t.Fatalf("expected 3025, got %d", payload.Amount)
	}
	if err := json.Unmarshal([]byte(`{"amount": "12.5"}`), &payload); err != nil {
		t.Fatalf("unmarshal string: %v", err)
	}
	if payload.Amount != 1_250 {
		t.Fatalf("expected 1250, got %d", payload.Amount)
	}
	if err := json.Unmarshal([]byte(`{"amount": 0.001}`), &payload); err == nil {
		t.Fatal("expected error for sub-minor amount")
	}

	out, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != `{"amount":"12.50"}` {
		t.Fatalf("unexpected json %s", out)
	}
}

func TestHugeExponentsFailFast(t *testing.T) {
	cases := []struct {
		in  string
		err error
	}{
		{"1e50000000", ErrOverflow},
		{"-1e999999999", ErrOverflow},
		{"1e-50000000", ErrInvalid},
		{"123e-999999999", ErrInvalid},
		{"1e17", ErrOverflow},
	}
	for _, tc := range cases {
		started := time.Now()
		if _, err := Parse(tc.in); !errors.Is(err, tc.err) {
			t.Errorf("Parse(%q) err=%v want %v", tc.in, err, tc.err)
		}
		var m Money
		if err := json.Unmarshal([]byte(tc.in), &m); !errors.Is(err, tc.err) {
			t.Errorf("unmarshal %s err=%v want %v", tc.in, err, tc.err)
		}
		if took := time.Since(started); took > 100*time.Millisecond {
			t.Errorf("%q took %s to reject", tc.in, took)
		}
	}

	exact := []struct {
		in   string
		want Money
	}{
		{"0e999999999", 0},
		{"1e16", Money(1e18)},
		{"12300e-4", 123},
		{"1.50e1", 1_500},
	}
	for _, tc := range exact {
		got, err := Parse(tc.in)
		if err != nil || got != tc.want {
			t.Errorf("Parse(%q)=%d, %v want %d", tc.in, got, err, tc.want)
		}
	}
}
