package jira

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/ternarybob/tessera/internal/models"
)

// adfDocument wraps plain text in the Atlassian Document Format
// required by the cloud v3 API.
func adfDocument(text string) map[string]interface{} {
	return map[string]interface{}{
		"type":    "doc",
		"version": 1,
		"content": []map[string]interface{}{
			{
				"type": "paragraph",
				"content": []map[string]interface{}{
					{"type": "text", "text": text},
				},
			},
		},
	}
}

// CreateTicket submits a ticket to the configured project. It always
// returns a result, never an error: every failure mode is folded
// into the result so chat-facing callers have one code path.
func (c *Client) CreateTicket(ctx context.Context, data *models.TicketData) *models.TicketResult {
	data.Normalize()

	fields := map[string]interface{}{
		"project":   map[string]string{"key": c.cfg.ProjectKey},
		"summary":   data.Title,
		"issuetype": map[string]string{"name": data.IssueType},
		"priority":  map[string]string{"name": data.Priority},
	}
	if len(data.Labels) > 0 {
		fields["labels"] = data.Labels
	}

	// Cloud v3 wants ADF; Data Center v2 takes plain text.
	if c.deployment.Cloud {
		fields["description"] = adfDocument(data.Description)
	} else {
		fields["description"] = data.Description
	}

	payload := map[string]interface{}{"fields": fields}

	resp, err := c.Do(ctx, http.MethodPost, "/issue", payload, nil, true)
	if err != nil {
		c.logger.Error().Err(err).Str("title", data.Title).Msg("Ticket creation failed")
		return &models.TicketResult{Success: false, Error: err.Error()}
	}

	if resp.StatusCode != http.StatusCreated {
		c.logger.Error().
			Int("status", resp.StatusCode).
			Str("title", data.Title).
			Msg("Jira rejected ticket creation")
		return &models.TicketResult{
			Success:    false,
			StatusCode: resp.StatusCode,
			Error:      fmt.Sprintf("jira returned status %d: %s", resp.StatusCode, string(resp.Body)),
		}
	}

	var created struct {
		ID  string `json:"id"`
		Key string `json:"key"`
	}
	if err := json.Unmarshal(resp.Body, &created); err != nil {
		return &models.TicketResult{Success: false, Error: fmt.Sprintf("failed to parse create response: %v", err)}
	}

	ticketURL := fmt.Sprintf("%s/browse/%s", strings.TrimSuffix(c.cfg.BaseURL, "/"), created.Key)

	c.logger.Info().
		Str("key", created.Key).
		Str("url", ticketURL).
		Msg("Ticket created")

	return &models.TicketResult{
		Success: true,
		Key:     created.Key,
		URL:     ticketURL,
	}
}

// AttachFile uploads a local file to an existing issue. Attachments
// use multipart form data and must carry the XSRF bypass header.
func (c *Client) AttachFile(ctx context.Context, issueKey, filePath string) error {
	c.mu.RLock()
	accessToken := c.accessToken
	apiBase := c.apiBase
	c.mu.RUnlock()

	if accessToken == "" {
		return ErrNotAuthenticated
	}

	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open attachment: %w", err)
	}
	defer file.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filepath.Base(filePath))
	if err != nil {
		return fmt.Errorf("failed to build multipart form: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return fmt.Errorf("failed to read attachment: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize multipart form: %w", err)
	}

	attachURL := fmt.Sprintf("%s/issue/%s/attachments", apiBase, issueKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, attachURL, &buf)
	if err != nil {
		return fmt.Errorf("failed to create attachment request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("X-Atlassian-Token", "no-check")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Op: "attach file", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("attachment upload returned status %d: %s", resp.StatusCode, string(body))
	}

	c.logger.Info().
		Str("issue_key", issueKey).
		Str("file", filepath.Base(filePath)).
		Msg("Attachment uploaded")

	return nil
}

// GetProject fetches project metadata, mainly used to verify the
// configured project key after authorization.
func (c *Client) GetProject(ctx context.Context, key string) (map[string]interface{}, error) {
	resp, err := c.Do(ctx, http.MethodGet, "/project/"+key, nil, nil, true)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, fmt.Errorf("project lookup returned status %d", resp.StatusCode)
	}

	var project map[string]interface{}
	if err := json.Unmarshal(resp.Body, &project); err != nil {
		return nil, fmt.Errorf("failed to decode project: %w", err)
	}
	return project, nil
}
