package auth

import "time"

type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Session is the credential pair handed to a client. Nothing about it is
// stored server-side.
type Session struct {
	AccessToken  string
	RefreshToken string
	AccessTTL    time.Duration
	RefreshTTL   time.Duration
}

type AccessGrant struct {
	AccessToken string
	AccessTTL   time.Duration
}
