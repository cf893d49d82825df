// Package validation provides input validation for receipt ingestion. Each validator
// checks a specific aspect of a parsed receipt: the currency spelling and the amount
// bounds. Validators run before any transaction is persisted so a model misread is
// rejected early instead of reaching the ledger.
package validation

import (
	"fmt"
	"strings"
)

// SupportedCurrencies lists the ISO 4217 codes a receipt may carry.
// PHP is the home currency; the rest cover receipts from abroad.
var SupportedCurrencies = []string{
	"PHP",
	"USD",
	"EUR",
	"GBP",
	"JPY",
	"SGD",
	"HKD",
	"AUD",
	"KRW",
	"AED",
}

// currencyAliases maps the spellings and symbols that appear on printed
// receipts to their ISO code. Philippine receipts commonly print a bare "P"
// before the total.
var currencyAliases = map[string]string{
	"₱":     "PHP",
	"P":     "PHP",
	"PESO":  "PHP",
	"PESOS": "PHP",
	"$":     "USD",
	"US$":   "USD",
	"€":     "EUR",
	"EURO":  "EUR",
	"£":     "GBP",
	"¥":     "JPY",
	"YEN":   "JPY",
	"S$":    "SGD",
	"HK$":   "HKD",
	"A$":    "AUD",
	"₩":     "KRW",
	"WON":   "KRW",
}

// NormalizeCurrency resolves a currency string read off a receipt to a
// supported ISO 4217 code. Vision models report the currency inconsistently
// (symbols, local names, lowercase codes), so every spelling funnels through
// here before a transaction row is written.
func NormalizeCurrency(currency string) (string, error) {
	c := strings.ToUpper(strings.TrimSpace(currency))
	if c == "" {
		return "", fmt.Errorf("currency cannot be empty")
	}

	if iso, ok := currencyAliases[c]; ok {
		return iso, nil
	}

	if !isSupportedCurrency(c) {
		return "", fmt.Errorf("unsupported currency: %s (supported: %v)", c, SupportedCurrencies)
	}

	return c, nil
}

// isSupportedCurrency checks if the code is in the supported list
func isSupportedCurrency(code string) bool {
	for _, supported := range SupportedCurrencies {
		if code == supported {
			return true
		}
	}
	return false
}

// currencySymbols maps ISO codes to the symbol used when rendering amounts
// back to the user. Codes without a symbol render as "CODE 12.34".
var currencySymbols = map[string]string{
	"PHP": "₱",
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
	"JPY": "¥",
}

// FormatAmount renders an amount in minor units for display in chat replies.
// PHP and an empty currency render with the peso sign since that is the
// overwhelmingly common case on receipts.
func FormatAmount(minor int64, currency string) string {
	value := float64(minor) / 100
	if currency == "PHP" || currency == "" {
		return fmt.Sprintf("₱%.2f", value)
	}
	if symbol, ok := currencySymbols[currency]; ok {
		return fmt.Sprintf("%s%.2f", symbol, value)
	}
	return fmt.Sprintf("%s %.2f", currency, value)
}
