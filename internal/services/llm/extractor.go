package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tessera/internal/interfaces"
	"github.com/ternarybob/tessera/internal/models"
)

const (
	// Confidence levels assigned by extraction outcome.
	confidenceFull     = 0.9
	confidencePartial  = 0.5
	confidenceFallback = 0.3

	maxFallbackTitleLen = 80
)

const extractionSystemPrompt = `You convert chat messages into structured issue tracker tickets.
Respond with a single JSON object and nothing else, using exactly these fields:
{
  "title": "short imperative summary, max 10 words",
  "description": "full description of the problem or request",
  "priority": "Lowest, Low, Medium, High or Highest",
  "issue_type": "Task, Bug or Story",
  "labels": ["optional", "lowercase", "labels"]
}
Infer priority and issue type from the message content. Do not invent details
that are not in the message.`

// Extractor turns free-form chat messages into structured tickets
// via an LLM provider, degrading gracefully when the provider fails
// or returns something unparseable.
type Extractor struct {
	llm      interfaces.LLMService
	provider string
	logger   arbor.ILogger
}

// NewExtractor creates a ticket extractor on top of an LLM service.
func NewExtractor(llm interfaces.LLMService, provider string, logger arbor.ILogger) *Extractor {
	return &Extractor{
		llm:      llm,
		provider: provider,
		logger:   logger,
	}
}

// Provider returns the name of the backing LLM provider.
func (e *Extractor) Provider() string {
	return e.provider
}

// Extract produces a ticket from a message. It always returns a
// usable ticket: LLM failures and unparseable output degrade to a
// fallback built from the raw message.
func (e *Extractor) Extract(ctx context.Context, message, userContext string) *models.TicketData {
	content := message
	if userContext != "" {
		content = fmt.Sprintf("%s\n\nReported by: %s", message, userContext)
	}

	response, err := e.llm.Chat(ctx, []interfaces.Message{
		{Role: "system", Content: extractionSystemPrompt},
		{Role: "user", Content: content},
	})
	if err != nil {
		e.logger.Warn().Err(err).Msg("LLM extraction failed, using fallback ticket")
		return e.fallbackTicket(message, userContext)
	}

	ticket, ok := parseTicketJSON(response)
	if !ok {
		e.logger.Warn().
			Int("response_length", len(response)).
			Msg("LLM returned unparseable ticket JSON, using fallback")
		return e.fallbackTicket(message, userContext)
	}

	if strings.TrimSpace(ticket.Title) == "" {
		ticket.Title = truncateTitle(message)
		ticket.Confidence = confidencePartial
	} else {
		ticket.Confidence = confidenceFull
	}
	if strings.TrimSpace(ticket.Description) == "" {
		ticket.Description = message
		if ticket.Confidence > confidencePartial {
			ticket.Confidence = confidencePartial
		}
	}

	ticket.Normalize()
	return ticket
}

// fallbackTicket builds a ticket directly from the raw message when
// extraction is unavailable.
func (e *Extractor) fallbackTicket(message, userContext string) *models.TicketData {
	description := message
	if userContext != "" {
		description = fmt.Sprintf("%s\n\nReported by: %s", message, userContext)
	}

	ticket := &models.TicketData{
		Title:       truncateTitle(message),
		Description: description,
		Priority:    "Medium",
		IssueType:   "Task",
		Confidence:  confidenceFallback,
	}
	ticket.Normalize()
	return ticket
}

// parseTicketJSON extracts a ticket object from an LLM response,
// tolerating markdown fences and surrounding prose.
func parseTicketJSON(response string) (*models.TicketData, bool) {
	cleaned := strings.TrimSpace(response)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start < 0 || end <= start {
		return nil, false
	}

	var ticket models.TicketData
	if err := json.Unmarshal([]byte(cleaned[start:end+1]), &ticket); err != nil {
		return nil, false
	}
	return &ticket, true
}

// truncateTitle shortens a message into a usable summary line.
func truncateTitle(message string) string {
	title := strings.TrimSpace(message)
	if idx := strings.IndexAny(title, "\r\n"); idx > 0 {
		title = title[:idx]
	}
	if len(title) > maxFallbackTitleLen {
		title = strings.TrimSpace(title[:maxFallbackTitleLen-3]) + "..."
	}
	return title
}
