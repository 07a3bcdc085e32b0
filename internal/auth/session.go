package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"unicode/utf8"
)

const (
	minPasswordLen = 8
	minUsernameLen = 3
	maxUsernameLen = 30
)

// EventRecorder receives one outcome per session operation.
type EventRecorder interface {
	AuthEvent(op, outcome string)
}

type nopRecorder struct{}

func (nopRecorder) AuthEvent(string, string) {}

type RegisterRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password1 string `json:"password1"`
	Password2 string `json:"password2"`
}

func (r *RegisterRequest) Normalize() {
	r.Username = strings.TrimSpace(r.Username)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
}

func (r RegisterRequest) Validate() error {
	if n := utf8.RuneCountInString(r.Username); n < minUsernameLen || n > maxUsernameLen {
		return ErrInvalidUsername
	}
	if addr, err := mail.ParseAddress(r.Email); err != nil || addr.Address != r.Email {
		return ErrInvalidEmail
	}
	if utf8.RuneCountInString(r.Password1) < minPasswordLen {
		return ErrPasswordTooShort
	}
	if r.Password1 != r.Password2 {
		return ErrPasswordMismatch
	}
	return nil
}

// IsValidationError reports whether err came from RegisterRequest.Validate.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidUsername) ||
		errors.Is(err, ErrInvalidEmail) ||
		errors.Is(err, ErrPasswordTooShort) ||
		errors.Is(err, ErrPasswordMismatch)
}

// Manager runs login, registration, refresh and logout. It keeps no
// per-client state: a session exists only as the tokens the client holds.
//
// Refresh tokens are neither rotated nor revoked. A refresh token stays
// usable until its own expiry, including after logout.
type Manager struct {
	users    UserStore
	hasher   *Hasher
	codec    *Codec
	recorder EventRecorder

	dummyMu   sync.Mutex
	dummyHash string
}

func NewManager(users UserStore, hasher *Hasher, codec *Codec, recorder EventRecorder) *Manager {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Manager{
		users:    users,
		hasher:   hasher,
		codec:    codec,
		recorder: recorder,
	}
}

func (m *Manager) Login(ctx context.Context, username, password string) (Session, error) {
	username = strings.TrimSpace(username)

	user, err := m.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			// Spend the same hashing cost as a real check.
			m.hasher.Verify(password, m.dummy())
			m.recorder.AuthEvent("login", "invalid_credentials")
			return Session{}, ErrInvalidCredentials
		}
		m.recorder.AuthEvent("login", "error")
		return Session{}, err
	}

	if !m.hasher.Verify(password, user.PasswordHash) {
		m.recorder.AuthEvent("login", "invalid_credentials")
		return Session{}, ErrInvalidCredentials
	}

	session, err := m.issueSession(user.Username)
	if err != nil {
		m.recorder.AuthEvent("login", "error")
		return Session{}, err
	}

	m.recorder.AuthEvent("login", "ok")
	return session, nil
}

func (m *Manager) Register(ctx context.Context, req RegisterRequest) (Session, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		m.recorder.AuthEvent("register", "invalid")
		return Session{}, err
	}

	if err := m.ensureAvailable(ctx, req.Username, req.Email); err != nil {
		m.recordRegisterFailure(err)
		return Session{}, err
	}

	hash, err := m.hasher.Hash(req.Password1)
	if err != nil {
		m.recorder.AuthEvent("register", "error")
		return Session{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := m.users.Create(ctx, req.Username, req.Email, hash)
	if err != nil {
		m.recordRegisterFailure(err)
		return Session{}, err
	}

	session, err := m.issueSession(user.Username)
	if err != nil {
		m.recorder.AuthEvent("register", "error")
		return Session{}, err
	}

	m.recorder.AuthEvent("register", "ok")
	return session, nil
}

// ensureAvailable checks email before username.
func (m *Manager) ensureAvailable(ctx context.Context, username, email string) error {
	if _, err := m.users.FindByEmail(ctx, email); err == nil {
		return ErrDuplicateEmail
	} else if !errors.Is(err, ErrUserNotFound) {
		return err
	}

	if _, err := m.users.FindByUsername(ctx, username); err == nil {
		return ErrDuplicateUsername
	} else if !errors.Is(err, ErrUserNotFound) {
		return err
	}

	return nil
}

func (m *Manager) recordRegisterFailure(err error) {
	if errors.Is(err, ErrDuplicateEmail) || errors.Is(err, ErrDuplicateUsername) {
		m.recorder.AuthEvent("register", "duplicate")
		return
	}
	m.recorder.AuthEvent("register", "error")
}

// Refresh mints a new access token from a refresh-kind token.
func (m *Manager) Refresh(refreshToken string) (AccessGrant, error) {
	if strings.TrimSpace(refreshToken) == "" {
		m.recorder.AuthEvent("refresh", "unauthenticated")
		return AccessGrant{}, ErrUnauthenticated
	}

	claims, err := m.codec.Verify(refreshToken)
	if err != nil || claims.Kind != KindRefresh {
		m.recorder.AuthEvent("refresh", "invalid_token")
		return AccessGrant{}, ErrInvalidToken
	}

	access, err := m.codec.IssueAccess(claims.Subject)
	if err != nil {
		m.recorder.AuthEvent("refresh", "error")
		return AccessGrant{}, err
	}

	m.recorder.AuthEvent("refresh", "ok")
	return AccessGrant{AccessToken: access, AccessTTL: m.codec.AccessTTL()}, nil
}

// Logout changes no server state; the transport discards the client's
// credentials.
func (m *Manager) Logout() {
	m.recorder.AuthEvent("logout", "ok")
}

func (m *Manager) issueSession(subject string) (Session, error) {
	access, err := m.codec.IssueAccess(subject)
	if err != nil {
		return Session{}, err
	}
	refresh, err := m.codec.IssueRefresh(subject)
	if err != nil {
		return Session{}, err
	}

	return Session{
		AccessToken:  access,
		RefreshToken: refresh,
		AccessTTL:    m.codec.AccessTTL(),
		RefreshTTL:   m.codec.RefreshTTL(),
	}, nil
}

// dummy returns the hash verified for unknown usernames. If hashing fails
// it falls back to a same-cost placeholder and retries on the next call.
func (m *Manager) dummy() string {
	m.dummyMu.Lock()
	defer m.dummyMu.Unlock()

	if m.dummyHash != "" {
		return m.dummyHash
	}

	hash, err := m.hasher.Hash("timing-equalizer-password")
	if err != nil {
		return m.hasher.placeholder()
	}
	m.dummyHash = hash
	return hash
}
