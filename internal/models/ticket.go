package models

import (
	"strings"
	"time"
)

// TicketData is the structured ticket extracted from a chat message.
type TicketData struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Priority    string   `json:"priority"`
	IssueType   string   `json:"issue_type"`
	Labels      []string `json:"labels,omitempty"`
	// Confidence reflects how the data was produced: full LLM parse,
	// partial parse, or fallback from the raw message.
	Confidence float64 `json:"confidence"`
}

// TicketResult is the outcome of a ticket submission attempt.
// Submission never fails with an error; failures are carried here.
type TicketResult struct {
	Success    bool   `json:"success"`
	Key        string `json:"ticket_key,omitempty"`
	URL        string `json:"ticket_url,omitempty"`
	StatusCode int    `json:"status_code,omitempty"`
	Error      string `json:"error,omitempty"`
}

// TicketRecord is the durable history entry for a submission attempt.
type TicketRecord struct {
	ID         string    `badgerhold:"key" json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	UserID     int64     `json:"user_id"`
	ChatID     int64     `json:"chat_id"`
	Username   string    `json:"username,omitempty"`
	Title      string    `json:"title"`
	IssueKey   string    `badgerhold:"index" json:"issue_key,omitempty"`
	IssueURL   string    `json:"issue_url,omitempty"`
	Success    bool      `badgerhold:"index" json:"success"`
	Error      string    `json:"error,omitempty"`
	Provider   string    `json:"provider,omitempty"`
	Confidence float64   `json:"confidence,omitempty"`
}

// Valid values accepted by Jira's default priority and issue type schemes.
var (
	validPriorities = map[string]string{
		"lowest": "Lowest", "low": "Low", "medium": "Medium",
		"high": "High", "highest": "Highest",
	}
	validIssueTypes = map[string]string{
		"task": "Task", "bug": "Bug", "story": "Story",
	}
)

// NormalizePriority maps free-form priority text onto Jira's default
// priority scheme. Unrecognized values fall back to Medium.
func NormalizePriority(raw string) string {
	v := strings.ToLower(strings.TrimSpace(raw))
	if p, ok := validPriorities[v]; ok {
		return p
	}
	switch {
	case strings.Contains(v, "crit"), strings.Contains(v, "urgent"), strings.Contains(v, "block"):
		return "Highest"
	case strings.Contains(v, "high"), strings.Contains(v, "major"):
		return "High"
	case strings.Contains(v, "trivial"), strings.Contains(v, "minor"):
		return "Lowest"
	case strings.Contains(v, "low"):
		return "Low"
	default:
		return "Medium"
	}
}

// NormalizeIssueType maps free-form issue type text onto the default
// Jira issue types. Unrecognized values fall back to Task.
func NormalizeIssueType(raw string) string {
	v := strings.ToLower(strings.TrimSpace(raw))
	if t, ok := validIssueTypes[v]; ok {
		return t
	}
	switch {
	case strings.Contains(v, "bug"), strings.Contains(v, "defect"), strings.Contains(v, "error"), strings.Contains(v, "fix"):
		return "Bug"
	case strings.Contains(v, "story"), strings.Contains(v, "feature"), strings.Contains(v, "enhance"):
		return "Story"
	default:
		return "Task"
	}
}

// Normalize cleans up an extracted ticket in place.
func (t *TicketData) Normalize() {
	t.Title = strings.TrimSpace(t.Title)
	t.Description = strings.TrimSpace(t.Description)
	t.Priority = NormalizePriority(t.Priority)
	t.IssueType = NormalizeIssueType(t.IssueType)
}
