package llm

import (
	"encoding/json"
	"math"
	"strings"
	"time"

	"github.com/GenAIPHBuilders-org/team-Deansanitzy-2025-sub005/internal/validation"
)

// ReceiptData is the structured outcome of a successful receipt parse.
// TotalMinor is in minor units (centavos): the model reports a decimal and
// ParseReceipt converts it exactly once, here.
type ReceiptData struct {
	Merchant   string  `json:"merchant,omitempty"`
	Date       string  `json:"date,omitempty"` // YYYY-MM-DD, empty when unreadable
	TotalMinor int64   `json:"total_minor"`
	Currency   string  `json:"currency"`
	Category   string  `json:"category,omitempty"`
	LineCount  int     `json:"line_count,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
}

// ReceiptResult is the tagged outcome of a receipt parse: either Parsed is
// set, or the scan is unparseable and only Raw is meaningful. There is no
// third state and no partially-defaulted record.
type ReceiptResult struct {
	Parsed *ReceiptData
	Raw    string // original model text, kept for sealed storage of failures
}

// Unparseable reports whether the model output could not be used.
func (r ReceiptResult) Unparseable() bool {
	return r.Parsed == nil
}

// ParseReceipt interprets raw model output. A response only counts as parsed
// when it is valid JSON with an in-range total and a recognized currency;
// everything else is the unparseable variant carrying the raw text. Merchant,
// date, category, and line count are optional detail, an unreadable date does
// not fail the parse.
func ParseReceipt(raw string) ReceiptResult {
	cleaned := stripFences(raw)

	var wire struct {
		Merchant   *string  `json:"merchant"`
		Date       *string  `json:"date"`
		Total      *float64 `json:"total"`
		Currency   *string  `json:"currency"`
		Category   *string  `json:"category"`
		LineCount  *int     `json:"line_count"`
		Confidence *float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(cleaned), &wire); err != nil {
		return ReceiptResult{Raw: raw}
	}
	if wire.Total == nil || wire.Currency == nil {
		return ReceiptResult{Raw: raw}
	}

	totalMinor := int64(math.Round(*wire.Total * 100))
	if err := validation.ValidateAmountMinor(totalMinor); err != nil {
		return ReceiptResult{Raw: raw}
	}
	currency, err := validation.NormalizeCurrency(*wire.Currency)
	if err != nil {
		return ReceiptResult{Raw: raw}
	}

	data := &ReceiptData{
		TotalMinor: totalMinor,
		Currency:   currency,
	}
	if wire.Merchant != nil {
		data.Merchant = strings.TrimSpace(*wire.Merchant)
	}
	if wire.Date != nil {
		if _, err := time.Parse("2006-01-02", *wire.Date); err == nil {
			data.Date = *wire.Date
		}
	}
	if wire.Category != nil {
		data.Category = strings.ToLower(strings.TrimSpace(*wire.Category))
	}
	if wire.LineCount != nil && *wire.LineCount > 0 {
		data.LineCount = *wire.LineCount
	}
	if wire.Confidence != nil {
		data.Confidence = *wire.Confidence
	}
	return ReceiptResult{Parsed: data, Raw: raw}
}

// stripFences removes a surrounding markdown code fence, which models emit
// despite the raw-JSON instruction.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
