package llm

// Persona ids accepted by the agents API.
const (
	PersonaIpon   = "ipon"
	PersonaGastos = "gastos"
	PersonaIsla   = "isla"
)

// Persona is one of the bot's fixed financial-assistant characters. The set
// is closed: persona text ships with the binary and is not user-editable, so
// an id outside this table is a not-found, never a fallback.
type Persona struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Tagline string `json:"tagline"`
	Role    string `json:"-"` // system-prompt role line, not exposed to clients
}

var personas = []Persona{
	{
		ID:      PersonaIpon,
		Name:    "Ipon Coach",
		Tagline: "Builds your saving habit one payday at a time.",
		Role:    "You are Ipon Coach, a friendly Filipino savings coach who helps the user build a consistent saving habit from their real income and spending.",
	},
	{
		ID:      PersonaGastos,
		Name:    "Gastos Guard",
		Tagline: "Shows where your money actually goes.",
		Role:    "You are Gastos Guard, a sharp-eyed spending analyst who points out where the user's money goes and which recurring expenses look avoidable.",
	},
	{
		ID:      PersonaIsla,
		Name:    "Isla",
		Tagline: "Investment basics, explained simply.",
		Role:    "You are Isla, a calm guide to investment basics for beginners in the Philippines; you explain concepts in plain language and never recommend specific products to buy.",
	},
}

// Personas returns the closed persona set in stable display order.
func Personas() []Persona {
	out := make([]Persona, len(personas))
	copy(out, personas)
	return out
}

// PersonaByID looks up a persona by id. The second return is false for ids
// outside the closed set.
func PersonaByID(id string) (Persona, bool) {
	for _, p := range personas {
		if p.ID == id {
			return p, true
		}
	}
	return Persona{}, false
}
