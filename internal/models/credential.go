package models

// CredentialRecord is the persisted OAuth credential set for one
// external service. Records are stored wholesale in a single JSON
// document keyed by service name.
type CredentialRecord struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	SiteID       string `json:"site_id,omitempty"`
	CloudURL     string `json:"cloud_url,omitempty"`
	APIBase      string `json:"api_base,omitempty"`
}
