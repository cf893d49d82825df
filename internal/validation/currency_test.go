package validation

import (
	"strings"
	"testing"
)

func TestNormalizeCurrency(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		// ISO codes pass through
		{"php", "PHP", "PHP", false},
		{"usd", "USD", "USD", false},
		{"eur", "EUR", "EUR", false},
		// Case and whitespace are normalized
		{"lowercase", "php", "PHP", false},
		{"mixed case", "Php", "PHP", false},
		{"padded", "  PHP  ", "PHP", false},
		// Symbols and local names resolve via aliases
		{"peso sign", "₱", "PHP", false},
		{"bare P", "P", "PHP", false},
		{"peso word", "peso", "PHP", false},
		{"pesos word", "Pesos", "PHP", false},
		{"dollar sign", "$", "USD", false},
		{"us dollar sign", "US$", "USD", false},
		{"euro sign", "€", "EUR", false},
		{"yen sign", "¥", "JPY", false},
		{"singapore dollar", "S$", "SGD", false},
		{"won word", "won", "KRW", false},
		// Invalid input
		{"empty", "", "", true},
		{"whitespace only", "   ", "", true},
		{"unknown code", "XYZ", "", true},
		{"unknown symbol", "₿", "", true},
		{"prose", "philippine money", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeCurrency(tt.in)
			if (err != nil) != tt.wantErr {
				t.Errorf("NormalizeCurrency(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
				return
			}
			if got != tt.want {
				t.Errorf("NormalizeCurrency(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeCurrency_UnsupportedListsOptions(t *testing.T) {
	_, err := NormalizeCurrency("XYZ")
	if err == nil {
		t.Fatal("expected error for unsupported currency")
	}
	if !strings.Contains(err.Error(), "PHP") {
		t.Errorf("error should list supported codes, got %q", err.Error())
	}
}

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		minor    int64
		currency string
		want     string
	}{
		{123456, "PHP", "₱1234.56"},
		{123456, "", "₱1234.56"},
		{9900, "USD", "$99.00"},
		{9900, "EUR", "€99.00"},
		{9900, "SGD", "SGD 99.00"},
		{5, "PHP", "₱0.05"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			got := FormatAmount(tt.minor, tt.currency)
			if got != tt.want {
				t.Errorf("FormatAmount(%d, %q) = %q, want %q", tt.minor, tt.currency, got, tt.want)
			}
		})
	}
}

func TestSupportedCurrenciesList(t *testing.T) {
	if len(SupportedCurrencies) == 0 {
		t.Error("SupportedCurrencies should not be empty")
	}
	for _, code := range SupportedCurrencies {
		if len(code) != 3 || code != strings.ToUpper(code) {
			t.Errorf("SupportedCurrencies contains non-ISO entry %q", code)
		}
	}
	// Every alias must resolve to a supported code
	for alias, iso := range currencyAliases {
		if !isSupportedCurrency(iso) {
			t.Errorf("alias %q maps to unsupported code %q", alias, iso)
		}
	}
}
