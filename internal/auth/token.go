package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

// Claims is the decoded claim set of a verified token.
type Claims struct {
	Subject   string
	Kind      Kind
	ExpiresAt time.Time
}

type tokenClaims struct {
	Kind Kind `json:"typ"`
	jwt.RegisteredClaims
}

// Codec issues and verifies signed, expiring bearer tokens. The secret and
// algorithm are fixed at construction.
type Codec struct {
	method     jwt.SigningMethod
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

type CodecOption func(*Codec)

// WithClock replaces time.Now for issuance and verification.
func WithClock(now func() time.Time) CodecOption {
	return func(c *Codec) {
		if now != nil {
			c.now = now
		}
	}
}

// NewCodec accepts HMAC algorithms only (HS256, HS384, HS512).
func NewCodec(secret []byte, algorithm string, accessTTL, refreshTTL time.Duration, opts ...CodecOption) (*Codec, error) {
	if len(secret) == 0 {
		return nil, ErrSecretRequired
	}

	method, ok := jwt.GetSigningMethod(algorithm).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedMethod, algorithm)
	}

	c := &Codec{
		method:     method,
		secret:     append([]byte(nil), secret...),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

func (c *Codec) AccessTTL() time.Duration  { return c.accessTTL }
func (c *Codec) RefreshTTL() time.Duration { return c.refreshTTL }

func (c *Codec) IssueAccess(subject string) (string, error) {
	return c.issue(subject, KindAccess, c.accessTTL)
}

func (c *Codec) IssueRefresh(subject string) (string, error) {
	return c.issue(subject, KindRefresh, c.refreshTTL)
}

func (c *Codec) issue(subject string, kind Kind, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", fmt.Errorf("issue %s token: empty subject", kind)
	}

	now := c.now().UTC()
	token := jwt.NewWithClaims(c.method, tokenClaims{
		Kind: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})

	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign jwt: %w", err)
	}

	return signed, nil
}

// Verify checks signature, algorithm and expiry. Every failure, whether the
// token is forged, malformed or expired, yields ErrInvalidToken.
func (c *Codec) Verify(tokenStr string) (Claims, error) {
	claims := &tokenClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (any, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{c.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil || !token.Valid {
		return Claims{}, ErrInvalidToken
	}

	if claims.Subject == "" || (claims.Kind != KindAccess && claims.Kind != KindRefresh) {
		return Claims{}, ErrInvalidToken
	}

	return Claims{
		Subject:   claims.Subject,
		Kind:      claims.Kind,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
