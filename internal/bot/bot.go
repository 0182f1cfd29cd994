package bot

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tessera/internal/interfaces"
	"github.com/ternarybob/tessera/internal/models"
	"github.com/ternarybob/tessera/internal/services/llm"
)

// Bot wires Telegram updates to extraction and ticket submission.
type Bot struct {
	telegram     *TelegramClient
	jira         interfaces.JiraService
	extractor    *llm.Extractor
	tickets      interfaces.TicketStorage
	events       interfaces.EventService
	logger       arbor.ILogger
	downloadsDir string
}

// NewBot creates the bot orchestrator.
func NewBot(
	telegram *TelegramClient,
	jiraService interfaces.JiraService,
	extractor *llm.Extractor,
	tickets interfaces.TicketStorage,
	eventService interfaces.EventService,
	downloadsDir string,
	logger arbor.ILogger,
) *Bot {
	return &Bot{
		telegram:     telegram,
		jira:         jiraService,
		extractor:    extractor,
		tickets:      tickets,
		events:       eventService,
		logger:       logger,
		downloadsDir: downloadsDir,
	}
}

// HandleUpdate processes one webhook update. Errors are handled by
// replying in chat; the webhook endpoint always acknowledges.
func (b *Bot) HandleUpdate(ctx context.Context, update *Update) {
	msg := update.Message
	if msg == nil {
		msg = update.EditedMessage
	}
	if msg == nil || msg.Chat == nil {
		return
	}
	if msg.From != nil && msg.From.IsBot {
		return
	}

	text := msg.EffectiveText()
	switch {
	case strings.HasPrefix(text, "/"):
		b.handleCommand(ctx, msg, text)
	case HasTicketHashtag(text):
		b.handleTicket(ctx, msg, text)
	}
}

// handleCommand answers bot commands.
func (b *Bot) handleCommand(ctx context.Context, msg *Message, text string) {
	command := strings.ToLower(strings.Fields(text)[0])
	if idx := strings.Index(command, "@"); idx > 0 {
		command = command[:idx]
	}

	switch command {
	case "/start", "/help":
		b.reply(ctx, msg, HelpText())
	case "/stats":
		stats, err := b.tickets.Stats(ctx)
		if err != nil {
			b.logger.Error().Err(err).Msg("Failed to read stats")
			b.reply(ctx, msg, "Stats are unavailable right now.")
			return
		}
		b.reply(ctx, msg, StatsText(stats.Processed, stats.Created, stats.Failed))
	}
}

// handleTicket runs the full message-to-ticket flow.
func (b *Bot) handleTicket(ctx context.Context, msg *Message, text string) {
	cleaned := CleanTicketText(text)
	if err := ValidateTicketText(cleaned); err != nil {
		b.reply(ctx, msg, err.Error())
		return
	}

	if !b.jira.IsAuthenticated() {
		b.reply(ctx, msg, "Jira is not connected yet. An administrator must complete authorization first.")
		return
	}

	b.events.Publish(ctx, interfaces.Event{Type: interfaces.EventTicketSubmitted, Payload: map[string]interface{}{
		"chat_id": msg.Chat.ID,
		"user":    msg.SenderName(),
	}})

	statusID, err := b.telegram.SendMessage(ctx, msg.Chat.ID, "Creating ticket...", msg.MessageID)
	if err != nil {
		b.logger.Error().Err(err).Msg("Failed to send status message")
	}

	ticket := b.extractor.Extract(ctx, cleaned, UserContext(msg))
	result := b.jira.CreateTicket(ctx, ticket)

	b.recordSubmission(ctx, msg, ticket, result)

	if result.Success {
		b.attachMedia(ctx, msg, result.Key)
	}

	b.notifyResult(ctx, msg, statusID, ticket, result)
}

// recordSubmission writes the history entry and emits events.
func (b *Bot) recordSubmission(ctx context.Context, msg *Message, ticket *models.TicketData, result *models.TicketResult) {
	record := &models.TicketRecord{
		UserID:     userID(msg),
		ChatID:     msg.Chat.ID,
		Username:   msg.SenderName(),
		Title:      ticket.Title,
		IssueKey:   result.Key,
		IssueURL:   result.URL,
		Success:    result.Success,
		Error:      result.Error,
		Provider:   b.extractor.Provider(),
		Confidence: ticket.Confidence,
	}
	if err := b.tickets.Store(ctx, record); err != nil {
		b.logger.Error().Err(err).Msg("Failed to record ticket submission")
	}

	eventType := interfaces.EventTicketCreated
	if !result.Success {
		eventType = interfaces.EventTicketFailed
	}
	b.events.Publish(ctx, interfaces.Event{Type: eventType, Payload: record})
}

// attachMedia uploads any photo or document on the message to the
// created issue. Attachment failure does not fail the ticket.
func (b *Bot) attachMedia(ctx context.Context, msg *Message, issueKey string) {
	fileID, filename, ok := ExtractFileID(msg)
	if !ok {
		return
	}

	path, err := b.DownloadAttachment(ctx, fileID, filename)
	if err != nil {
		b.logger.Warn().Err(err).Str("issue_key", issueKey).Msg("Failed to download attachment")
		return
	}
	defer os.Remove(path)

	if err := b.jira.AttachFile(ctx, issueKey, path); err != nil {
		b.logger.Warn().Err(err).Str("issue_key", issueKey).Msg("Failed to attach file to issue")
	}
}

// notifyResult edits the status message with the outcome, falling
// back to a fresh reply when the edit fails.
func (b *Bot) notifyResult(ctx context.Context, msg *Message, statusID int64, ticket *models.TicketData, result *models.TicketResult) {
	var text string
	if result.Success {
		text = fmt.Sprintf("Ticket created: %s\n%s\n\nTitle: %s\nPriority: %s", result.Key, result.URL, ticket.Title, ticket.Priority)
	} else {
		text = "Could not create the ticket. The team has been notified; please try again later."
		b.logger.Error().
			Str("error", result.Error).
			Int("status", result.StatusCode).
			Msg("Ticket submission failed")
	}

	if statusID > 0 {
		if err := b.telegram.EditMessageText(ctx, msg.Chat.ID, statusID, text); err == nil {
			return
		}
	}
	b.reply(ctx, msg, text)
}

func (b *Bot) reply(ctx context.Context, msg *Message, text string) {
	if _, err := b.telegram.SendMessage(ctx, msg.Chat.ID, text, msg.MessageID); err != nil {
		b.logger.Error().Err(err).Int64("chat_id", msg.Chat.ID).Msg("Failed to send reply")
	}
}

func userID(msg *Message) int64 {
	if msg.From == nil {
		return 0
	}
	return msg.From.ID
}
