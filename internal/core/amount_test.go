package core

import (
	"errors"
	"testing"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		ok  bool
		out string
	}{
		{"12.34", true, "12.3400"},
		{"-200", true, "-200.0000"},
		{"0.0001", true, "0.0001"},
		{"1.23456", false, ""}, // beyond persisted scale
		{"abc", false, ""},
		{"", false, ""},
	}
	for i, tc := range cases {
		a, err := ParseAmount(tc.in, "EUR")
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok {
			if err == nil {
				t.Fatalf("case %d expected error", i)
			}
			if !errors.Is(err, ErrInvalidAmount) {
				t.Fatalf("case %d expected ErrInvalidAmount, got %v", i, err)
			}
			continue
		}
		if got := a.String(); got != tc.out {
			t.Fatalf("case %d got %q want %q", i, got, tc.out)
		}
	}
}

func TestAmountArithmeticIsExact(t *testing.T) {
	a := MustParseAmount("0.1", "EUR")
	b := MustParseAmount("0.2", "EUR")
	sum, err := a.Add(b)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	// 0.1+0.2 must be exactly 0.3, which float64 cannot represent.
	if !sum.Equal(MustParseAmount("0.3", "EUR")) {
		t.Fatalf("0.1+0.2 = %s, want 0.3000", sum)
	}

	diff, err := sum.Sub(MustParseAmount("0.3", "EUR"))
	if err != nil {
		t.Fatalf("sub: %v", err)
	}
	if !diff.IsZero() {
		t.Fatalf("expected zero, got %s", diff)
	}
}

func TestAmountCurrencyMismatch(t *testing.T) {
	eur := MustParseAmount("1", "EUR")
	usd := MustParseAmount("1", "USD")

	if _, err := eur.Add(usd); !errors.Is(err, ErrCurrencyMismatch) {
		t.Fatalf("Add: expected ErrCurrencyMismatch, got %v", err)
	}
	if _, err := eur.Sub(usd); !errors.Is(err, ErrCurrencyMismatch) {
		t.Fatalf("Sub: expected ErrCurrencyMismatch, got %v", err)
	}
	if _, err := eur.Cmp(usd); !errors.Is(err, ErrCurrencyMismatch) {
		t.Fatalf("Cmp: expected ErrCurrencyMismatch, got %v", err)
	}
	if _, err := Sum("EUR", []Amount{eur, usd}); !errors.Is(err, ErrCurrencyMismatch) {
		t.Fatalf("Sum: expected ErrCurrencyMismatch, got %v", err)
	}
}

func TestAmountNegAndSum(t *testing.T) {
	a := MustParseAmount("250.50", "EUR")
	if got := a.Neg().String(); got != "-250.5000" {
		t.Fatalf("Neg got %q", got)
	}
	if !a.Neg().Neg().Equal(a) {
		t.Fatalf("double negation should round-trip")
	}

	total, err := Sum("EUR", []Amount{
		MustParseAmount("10", "EUR"),
		MustParseAmount("-2.5", "EUR"),
		MustParseAmount("0.0001", "EUR"),
	})
	if err != nil {
		t.Fatalf("sum: %v", err)
	}
	if got := total.String(); got != "7.5001" {
		t.Fatalf("Sum got %q want 7.5001", got)
	}

	empty, err := Sum("EUR", nil)
	if err != nil {
		t.Fatalf("empty sum: %v", err)
	}
	if !empty.IsZero() || empty.Currency() != "EUR" {
		t.Fatalf("empty sum should be EUR zero, got %s %s", empty, empty.Currency())
	}
}

func TestValidCurrency(t *testing.T) {
	if !ValidCurrency("EUR") || !ValidCurrency("USD") {
		t.Fatalf("expected EUR and USD to be known")
	}
	if ValidCurrency("XXXX") || ValidCurrency("") {
		t.Fatalf("expected unknown codes to be rejected")
	}
}
