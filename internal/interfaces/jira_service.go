package interfaces

import (
	"context"

	"github.com/ternarybob/tessera/internal/models"
)

// JiraService is the OAuth-backed Jira integration surface used by
// the bot, handlers, and background jobs.
type JiraService interface {
	// AuthorizationURL builds the provider authorization URL. An empty
	// state gets a generated one.
	AuthorizationURL(state string) string

	// ExchangeCode trades an authorization code for tokens and binds
	// the session to a site.
	ExchangeCode(ctx context.Context, code string) error

	// Refresh obtains a new access token using the stored refresh token.
	Refresh(ctx context.Context) error

	// IsAuthenticated reports whether an access token is held.
	IsAuthenticated() bool

	// SiteID returns the bound cloud site id, empty for Data Center.
	SiteID() string

	// CreateTicket submits a ticket. It always returns a result,
	// never an error: failures are carried in the result.
	CreateTicket(ctx context.Context, data *models.TicketData) *models.TicketResult

	// AttachFile uploads a local file to an existing issue.
	AttachFile(ctx context.Context, issueKey, filePath string) error

	// Ping probes the API with the current token without triggering
	// a refresh.
	Ping(ctx context.Context) error

	// GetProject fetches project metadata by key.
	GetProject(ctx context.Context, key string) (map[string]interface{}, error)
}
