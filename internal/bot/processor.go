package bot

import (
	"fmt"
	"strings"
	"unicode"
)

const (
	// TicketHashtag marks a message as a ticket request.
	TicketHashtag = "#ticket"

	// minTicketLength is the minimum usable content length after the
	// hashtag is stripped.
	minTicketLength = 10

	// maxTicketLength caps content passed to extraction.
	maxTicketLength = 4000
)

// ValidationError explains why a ticket message was rejected, in
// text suitable for a chat reply.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// HasTicketHashtag reports whether the message text requests a ticket.
func HasTicketHashtag(text string) bool {
	lower := strings.ToLower(text)
	idx := strings.Index(lower, TicketHashtag)
	if idx < 0 {
		return false
	}
	// The hashtag must stand alone, not be part of a longer tag.
	end := idx + len(TicketHashtag)
	if end < len(lower) {
		next := rune(lower[end])
		if unicode.IsLetter(next) || unicode.IsDigit(next) {
			return false
		}
	}
	return true
}

// CleanTicketText strips the hashtag and trims the remaining content.
func CleanTicketText(text string) string {
	cleaned := text
	lower := strings.ToLower(cleaned)
	for {
		idx := strings.Index(lower, TicketHashtag)
		if idx < 0 {
			break
		}
		cleaned = cleaned[:idx] + cleaned[idx+len(TicketHashtag):]
		lower = strings.ToLower(cleaned)
	}

	cleaned = strings.TrimSpace(cleaned)
	if len(cleaned) > maxTicketLength {
		cleaned = cleaned[:maxTicketLength]
	}
	return cleaned
}

// ValidateTicketText rejects content too short or too noisy to
// become a useful ticket.
func ValidateTicketText(text string) error {
	if len(text) < minTicketLength {
		return &ValidationError{Reason: fmt.Sprintf("Ticket description too short. Please include at least %d characters after %s.", minTicketLength, TicketHashtag)}
	}

	if ratio := uniqueCharRatio(text); ratio < 0.3 {
		return &ValidationError{Reason: "Ticket description looks like repeated characters. Please describe the issue."}
	}

	if specialCharRatio(text) > 0.5 {
		return &ValidationError{Reason: "Ticket description is mostly symbols. Please describe the issue in words."}
	}

	return nil
}

// uniqueCharRatio measures character diversity; spam like
// "aaaaaaaaaa" scores near zero.
func uniqueCharRatio(text string) float64 {
	seen := map[rune]struct{}{}
	total := 0
	for _, r := range text {
		if unicode.IsSpace(r) {
			continue
		}
		seen[r] = struct{}{}
		total++
	}
	if total == 0 {
		return 0
	}
	return float64(len(seen)) / float64(total)
}

// specialCharRatio measures the share of non-alphanumeric content.
func specialCharRatio(text string) float64 {
	special := 0
	total := 0
	for _, r := range text {
		if unicode.IsSpace(r) {
			continue
		}
		total++
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			special++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(special) / float64(total)
}

// UserContext builds a short reporter label for ticket descriptions.
func UserContext(msg *Message) string {
	if msg == nil || msg.From == nil {
		return ""
	}
	name := msg.SenderName()
	if msg.Chat != nil && msg.Chat.Title != "" {
		return fmt.Sprintf("%s in %s", name, msg.Chat.Title)
	}
	return name
}

// HelpText is the /help and /start reply.
func HelpText() string {
	return strings.Join([]string{
		"I turn chat messages into Jira tickets.",
		"",
		"Include " + TicketHashtag + " in a message to file it, for example:",
		"  " + TicketHashtag + " Login page shows a 500 error after password reset",
		"",
		"Commands:",
		"  /help - this message",
		"  /stats - submission counters",
	}, "\n")
}

// StatsText formats submission counters for a chat reply.
func StatsText(processed, created, failed int) string {
	return fmt.Sprintf("Messages processed: %d\nTickets created: %d\nErrors: %d", processed, created, failed)
}
