package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/GenAIPHBuilders-org/team-Deansanitzy-2025-sub005/internal/db/models"
	"github.com/GenAIPHBuilders-org/team-Deansanitzy-2025-sub005/internal/linking"
	"github.com/GenAIPHBuilders-org/team-Deansanitzy-2025-sub005/internal/llm"
	"github.com/GenAIPHBuilders-org/team-Deansanitzy-2025-sub005/internal/telemetry"
)

// DefaultContextWindow is how far back the financial context for an agent
// chat reaches when agents.context_window is unset.
const DefaultContextWindow = 30 * 24 * time.Hour

var (
	// ErrUnknownPersona is returned when the requested agent id is not in
	// the persona set.
	ErrUnknownPersona = errors.New("unknown agent persona")

	// ErrEmptyMessage is returned when a chat message is blank.
	ErrEmptyMessage = errors.New("message must not be empty")
)

type transactionSummarizer interface {
	SummarizeByUser(ctx context.Context, userID string, since time.Time) (*models.TransactionSummary, error)
}

// ChatReply is one agent answer.
type ChatReply struct {
	PersonaID   string `json:"persona_id"`
	PersonaName string `json:"persona_name"`
	Reply       string `json:"reply"`
}

// AgentService answers user questions in one of the fixed agent personas,
// grounding every answer in the user's own recent transactions. The personas
// differ only in voice; none of them sees anything beyond the summary block.
type AgentService struct {
	txns   transactionSummarizer
	model  llm.Client
	window time.Duration
}

// NewAgentService creates the agent service.
func NewAgentService(txns transactionSummarizer, model llm.Client, window time.Duration) *AgentService {
	if window <= 0 {
		window = DefaultContextWindow
	}
	return &AgentService{txns: txns, model: model, window: window}
}

// Chat sends one user message to the named persona and returns its reply.
func (s *AgentService) Chat(ctx context.Context, webUserID, personaID, message string) (*ChatReply, error) {
	persona, ok := llm.PersonaByID(personaID)
	if !ok {
		return nil, ErrUnknownPersona
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, ErrEmptyMessage
	}

	var summary *models.TransactionSummary
	err := withStorageRetry(ctx, func() error {
		var e error
		summary, e = s.txns.SummarizeByUser(ctx, webUserID, time.Now().Add(-s.window))
		return e
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", linking.ErrStorageUnavailable, err)
	}

	prompt := llm.BuildAgentPrompt(persona, s.contextBlock(summary), message)
	reply, err := s.model.Complete(ctx, prompt)
	if err != nil {
		outcome := "error"
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			outcome = "timeout"
		}
		telemetry.LLMRequestsTotal.WithLabelValues("agent_chat", outcome).Inc()
		return nil, fmt.Errorf("%w: %v", linking.ErrUpstreamUnavailable, err)
	}
	telemetry.LLMRequestsTotal.WithLabelValues("agent_chat", "ok").Inc()

	return &ChatReply{
		PersonaID:   persona.ID,
		PersonaName: persona.Name,
		Reply:       strings.TrimSpace(reply),
	}, nil
}

// contextBlock renders the transaction summary into the plain-text block the
// persona prompt embeds. The model is told not to invent figures, so an
// empty window says so explicitly.
func (s *AgentService) contextBlock(summary *models.TransactionSummary) string {
	days := int(s.window.Hours() / 24)
	if summary.Count == 0 {
		return fmt.Sprintf("No transactions recorded in the last %d days.", days)
	}

	currency := summary.Currency
	if currency == "" {
		currency = "PHP"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Activity for the last %d days:\n", days)
	fmt.Fprintf(&b, "- income: %s %.2f\n", currency, float64(summary.IncomeMinor)/100)
	fmt.Fprintf(&b, "- expenses: %s %.2f\n", currency, float64(summary.ExpenseMinor)/100)
	fmt.Fprintf(&b, "- transactions: %d", summary.Count)
	if summary.TopCategory != nil {
		fmt.Fprintf(&b, "\n- top spending category: %s", *summary.TopCategory)
	}
	return b.String()
}
