package llm

import (
	"strings"
	"testing"
	"time"
)

func TestParseReceipt_CleanJSON(t *testing.T) {
	raw := `{"merchant":"SM Supermarket","date":"2025-06-01","total":1234.56,"currency":"PHP","category":"grocery","line_count":12,"confidence":0.92}`

	result := ParseReceipt(raw)
	if result.Unparseable() {
		t.Fatal("result unparseable, want parsed")
	}
	d := result.Parsed
	if d.Merchant != "SM Supermarket" {
		t.Errorf("Merchant = %q", d.Merchant)
	}
	if d.Date != "2025-06-01" {
		t.Errorf("Date = %q", d.Date)
	}
	if d.TotalMinor != 123456 {
		t.Errorf("TotalMinor = %d, want 123456", d.TotalMinor)
	}
	if d.Currency != "PHP" {
		t.Errorf("Currency = %q", d.Currency)
	}
	if d.Category != "grocery" {
		t.Errorf("Category = %q", d.Category)
	}
	if d.LineCount != 12 {
		t.Errorf("LineCount = %d", d.LineCount)
	}
	if d.Confidence != 0.92 {
		t.Errorf("Confidence = %v", d.Confidence)
	}
	if result.Raw != raw {
		t.Error("Raw not preserved on the parsed variant")
	}
}

func TestParseReceipt_FencedJSON(t *testing.T) {
	raws := []string{
		"```json\n{\"total\": 250, \"currency\": \"PHP\"}\n```",
		"```\n{\"total\": 250, \"currency\": \"PHP\"}\n```",
		"  ```json\n{\"total\": 250, \"currency\": \"PHP\"}\n```  ",
	}
	for _, raw := range raws {
		result := ParseReceipt(raw)
		if result.Unparseable() {
			t.Errorf("fenced output unparseable: %q", raw)
			continue
		}
		if result.Parsed.TotalMinor != 25000 {
			t.Errorf("TotalMinor = %d for %q", result.Parsed.TotalMinor, raw)
		}
	}
}

func TestParseReceipt_Unparseable(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"prose", "Sorry, I cannot read this receipt clearly."},
		{"empty", ""},
		{"null total", `{"merchant":"X","total":null,"currency":"PHP"}`},
		{"missing total", `{"merchant":"X","currency":"PHP"}`},
		{"zero total", `{"total":0,"currency":"PHP"}`},
		{"negative total", `{"total":-45.5,"currency":"PHP"}`},
		{"missing currency", `{"total":100}`},
		{"blank currency", `{"total":100,"currency":"  "}`},
		{"unknown currency", `{"total":100,"currency":"XYZ"}`},
		{"absurd total", `{"total":99999999999,"currency":"PHP"}`},
		{"broken json", `{"total": 100,`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ParseReceipt(tt.raw)
			if !result.Unparseable() {
				t.Errorf("ParseReceipt(%q) parsed, want unparseable", tt.raw)
			}
			if result.Raw != tt.raw {
				t.Errorf("Raw = %q, want the original text", result.Raw)
			}
			if result.Parsed != nil {
				t.Error("Parsed set on unparseable variant")
			}
		})
	}
}

func TestParseReceipt_Normalization(t *testing.T) {
	result := ParseReceipt(`{"merchant":"  Mercury Drug  ","date":"June 1","total":99.999,"currency":" php ","category":" Health ","line_count":-3}`)
	if result.Unparseable() {
		t.Fatal("result unparseable, want parsed")
	}
	d := result.Parsed
	if d.TotalMinor != 10000 {
		t.Errorf("TotalMinor = %d, want rounded 10000", d.TotalMinor)
	}
	if d.Currency != "PHP" {
		t.Errorf("Currency = %q, want uppercased PHP", d.Currency)
	}
	if d.Merchant != "Mercury Drug" {
		t.Errorf("Merchant = %q, want trimmed", d.Merchant)
	}
	// A date the model free-formed is dropped, not guessed
	if d.Date != "" {
		t.Errorf("Date = %q, want empty for non-ISO input", d.Date)
	}
	if d.Category != "health" {
		t.Errorf("Category = %q, want lowercased", d.Category)
	}
	if d.LineCount != 0 {
		t.Errorf("LineCount = %d, want 0 for negative input", d.LineCount)
	}
}

func TestParseReceipt_IntegerTotal(t *testing.T) {
	result := ParseReceipt(`{"total":250,"currency":"PHP"}`)
	if result.Unparseable() {
		t.Fatal("result unparseable, want parsed")
	}
	if result.Parsed.TotalMinor != 25000 {
		t.Errorf("TotalMinor = %d, want 25000", result.Parsed.TotalMinor)
	}
}

func TestParseReceipt_CurrencySymbols(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{`{"total":100,"currency":"₱"}`, "PHP"},
		{`{"total":100,"currency":"P"}`, "PHP"},
		{`{"total":100,"currency":"pesos"}`, "PHP"},
		{`{"total":100,"currency":"$"}`, "USD"},
	}

	for _, tt := range tests {
		result := ParseReceipt(tt.raw)
		if result.Unparseable() {
			t.Errorf("ParseReceipt(%q) unparseable, want parsed", tt.raw)
			continue
		}
		if result.Parsed.Currency != tt.want {
			t.Errorf("ParseReceipt(%q) currency = %q, want %q", tt.raw, result.Parsed.Currency, tt.want)
		}
	}
}

func TestBuildReceiptPrompt(t *testing.T) {
	prompt := BuildReceiptPrompt(time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC))
	if !strings.Contains(prompt, "Today's date is: 2025-06-01") {
		t.Error("prompt missing formatted date")
	}
	if !strings.Contains(prompt, "ONLY raw JSON") {
		t.Error("prompt missing strict-JSON instruction")
	}
}

func TestBuildAgentPrompt(t *testing.T) {
	persona, ok := PersonaByID(PersonaIpon)
	if !ok {
		t.Fatal("ipon persona missing")
	}
	prompt := BuildAgentPrompt(persona, "Income: P10,000. Expenses: P8,000.", "How much should I save?")

	if !strings.HasPrefix(prompt, persona.Role) {
		t.Error("prompt does not start with the persona role line")
	}
	if !strings.Contains(prompt, "Income: P10,000.") {
		t.Error("prompt missing context block")
	}
	if !strings.Contains(prompt, "How much should I save?") {
		t.Error("prompt missing user message")
	}
}
