package validation

import "testing"

func TestValidateAmountMinor(t *testing.T) {
	tests := []struct {
		name    string
		minor   int64
		wantErr bool
	}{
		{"one centavo", 1, false},
		{"typical receipt", 123456, false},
		{"large receipt", 750_000_00, false},
		{"exactly at cap", MaxAmountMinor, false},
		{"zero", 0, true},
		{"negative", -100, true},
		{"above cap", MaxAmountMinor + 1, true},
		{"misread phone number", 9_171_234_567_800, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAmountMinor(tt.minor)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateAmountMinor(%d) error = %v, wantErr %v", tt.minor, err, tt.wantErr)
			}
		})
	}
}
