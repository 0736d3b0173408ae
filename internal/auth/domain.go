package auth

import "time"

// APIKey is an issued credential scoped to one company.
type APIKey struct {
	ID        int64      `json:"id"`
	CompanyID int64      `json:"company_id"`
	Label     string     `json:"label"`
	Prefix    string     `json:"prefix"`
	IsActive  bool       `json:"is_active"`
	CreatedAt time.Time  `json:"created_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
}

// IssuedKey carries the plaintext secret exactly once, at creation time.
type IssuedKey struct {
	APIKey
	Secret string `json:"secret"`
}
