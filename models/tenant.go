package models

// Tenant is one restaurant sharing the deployment.
type Tenant struct {
	ID                  string `json:"id"`
	DisplayName         string `json:"displayName"`
	Address             string `json:"address,omitempty"`
	Phone               string `json:"phone,omitempty"`
	IncludeGSTByDefault bool   `json:"includeGstByDefault"`
	// PrintChatID is the Telegram chat that receives printed receipts; 0 disables printing.
	PrintChatID int64 `json:"-"`
}
