package models

import "time"

// AccessToken is the login response body.
type AccessToken struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"-"`
}

const TokenTypeBearer = "bearer"
