// amount.go bounds the monetary amounts read off receipts before they are written
// to a transaction row.
package validation

import "fmt"

// MaxAmountMinor caps a single receipt total, in minor units. A total above
// roughly a million pesos is a misread (a reference or phone number picked up
// as the amount), not a purchase.
const MaxAmountMinor int64 = 100_000_000

// ValidateAmountMinor validates a receipt total expressed in minor units
// (centavos for PHP).
func ValidateAmountMinor(minor int64) error {
	if minor <= 0 {
		return fmt.Errorf("amount must be positive, got %d", minor)
	}

	if minor > MaxAmountMinor {
		return fmt.Errorf("amount %d exceeds maximum %d minor units", minor, MaxAmountMinor)
	}

	return nil
}
