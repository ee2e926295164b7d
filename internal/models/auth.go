package models

// Auth is the identity the auth collaborator resolves for a request. The
// engine trusts it unconditionally; authentication itself lives outside
// this service.
type Auth struct {
	TenantID string `json:"tenantId"`
	UserID   string `json:"userId"`
	Role     string `json:"role"`
}
