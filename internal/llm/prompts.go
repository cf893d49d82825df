package llm

import (
	"fmt"
	"time"
)

// ReceiptPromptTemplate is used for parsing Philippine retail receipts from
// photos. The receipt image is attached to the same request as inline data.
const ReceiptPromptTemplate = `You are a strict JSON parser for Philippine retail receipts.
You are given a photo of one receipt. Timezone is Asia/Manila.

You MUST respond with ONLY raw JSON. No explanation. No markdown.

Use this JSON format:

{
  "merchant": "string or null",
  "date": "YYYY-MM-DD or null",
  "total": number or null,
  "currency": "PHP",
  "category": "food" | "grocery" | "transport" | "bill" | "shopping" | "health" | "other",
  "line_count": number of purchased line items or null,
  "confidence": 0.0 to 1.0
}

Category hints:
- Restaurants and fast food, Jollibee, McDo, karinderya -> "food"
- SM Supermarket, Puregold, Robinsons Supermarket, sari-sari goods -> "grocery"
- Grab, jeepney, bus, MRT, LRT, gasoline stations -> "transport"
- Meralco, Maynilad, PLDT, Globe, Smart, water district -> "bill"
- Shopee, Lazada, department stores -> "shopping"
- Mercury Drug, Watsons, Southstar, clinics -> "health"

The total is the final amount paid including VAT. Prefer the line labelled
TOTAL or AMOUNT DUE over CASH or CHANGE.
Only fill fields when the information is clearly readable on the receipt.
If unclear, use null. NEVER guess an amount. Set confidence based on how
certain you are.

Today's date is: %s`

// BuildReceiptPrompt fills the receipt template with the current date so the
// model can resolve receipts that omit the year.
func BuildReceiptPrompt(now time.Time) string {
	return fmt.Sprintf(ReceiptPromptTemplate, now.Format("2006-01-02"))
}

// AgentPromptTemplate frames a persona chat completion: persona role line,
// the caller's recent-activity context block, then the user's message.
const AgentPromptTemplate = `%s

The user's recent financial activity:
%s

Answer the user's question in 2-4 short sentences. Be concrete and practical.
Amounts are in Philippine pesos unless stated otherwise. Do not invent
transactions that are not in the activity summary.

User message:
%s`

// BuildAgentPrompt assembles the completion prompt for a persona chat.
func BuildAgentPrompt(persona Persona, contextBlock, userMessage string) string {
	return fmt.Sprintf(AgentPromptTemplate, persona.Role, contextBlock, userMessage)
}
