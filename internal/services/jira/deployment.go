package jira

import (
	"fmt"
	"net/url"
	"strings"
)

const (
	cloudAuthURL  = "https://auth.atlassian.com/authorize"
	cloudTokenURL = "https://auth.atlassian.com/oauth/token"
	cloudAudience = "api.atlassian.com"
)

// Deployment captures everything that differs between Jira Cloud and
// Jira Data Center: OAuth endpoints, scopes, and the REST API shape.
type Deployment struct {
	Cloud      bool
	AuthURL    string
	TokenURL   string
	Scopes     []string
	APIVersion int
	APIBase    string
}

// ResolveDeployment classifies a Jira base URL as Cloud or Data
// Center and selects the matching endpoints. Cloud sites live under
// *.atlassian.net; everything else is treated as self-hosted.
func ResolveDeployment(baseURL string) Deployment {
	base := strings.TrimSuffix(strings.TrimSpace(baseURL), "/")

	host := base
	if u, err := url.Parse(base); err == nil && u.Host != "" {
		host = u.Hostname()
	}

	scopes := []string{"read:jira-user", "read:jira-work", "write:jira-work"}

	if strings.HasSuffix(host, ".atlassian.net") {
		return Deployment{
			Cloud:      true,
			AuthURL:    cloudAuthURL,
			TokenURL:   cloudTokenURL,
			Scopes:     append(scopes, "offline_access"),
			APIVersion: 3,
			APIBase:    fmt.Sprintf("%s/rest/api/3", base),
		}
	}

	return Deployment{
		Cloud:      false,
		AuthURL:    fmt.Sprintf("%s/plugins/servlet/oauth/authorize", base),
		TokenURL:   fmt.Sprintf("%s/plugins/servlet/oauth/access-token", base),
		Scopes:     append(scopes, "manage:jira-project", "manage:jira-configuration"),
		APIVersion: 2,
		APIBase:    fmt.Sprintf("%s/rest/api/2", base),
	}
}
