package auth

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-must-be-32-bytes"

type memoryStore struct {
	mu      sync.Mutex
	users   map[string]User
	nextID  int
	findErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{users: make(map[string]User)}
}

func (s *memoryStore) FindByUsername(_ context.Context, username string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return User{}, s.findErr
	}
	user, ok := s.users[username]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return user, nil
}

func (s *memoryStore) FindByEmail(_ context.Context, email string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return User{}, s.findErr
	}
	for _, user := range s.users {
		if user.Email == email {
			return user, nil
		}
	}
	return User{}, ErrUserNotFound
}

func (s *memoryStore) Create(_ context.Context, username, email, passwordHash string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if user.Email == email {
			return User{}, ErrDuplicateEmail
		}
	}
	if _, ok := s.users[username]; ok {
		return User{}, ErrDuplicateUsername
	}
	s.nextID++
	user := User{
		ID:           "user-" + strconv.Itoa(s.nextID),
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	s.users[username] = user
	return user, nil
}

func (s *memoryStore) delete(username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, username)
}

type recordedEvent struct {
	op, outcome string
}

type eventLog struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (l *eventLog) AuthEvent(op, outcome string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, recordedEvent{op: op, outcome: outcome})
}

func (l *eventLog) last() recordedEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.events) == 0 {
		return recordedEvent{}
	}
	return l.events[len(l.events)-1]
}

// fastHasher keeps argon2 cheap in tests.
func fastHasher() *Hasher {
	return NewHasher(WithTime(1), WithMemory(1024), WithThreads(1))
}

func newTestCodec(t *testing.T, opts ...CodecOption) *Codec {
	t.Helper()
	codec, err := NewCodec([]byte(testSecret), "HS256", 10*time.Minute, 7*24*time.Hour, opts...)
	require.NoError(t, err)
	return codec
}

type fixture struct {
	store   *memoryStore
	codec   *Codec
	hasher  *Hasher
	events  *eventLog
	manager *Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:  newMemoryStore(),
		codec:  newTestCodec(t),
		hasher: fastHasher(),
		events: &eventLog{},
	}
	f.manager = NewManager(f.store, f.hasher, f.codec, f.events)
	return f
}

func (f *fixture) register(t *testing.T, username, email, password string) Session {
	t.Helper()
	session, err := f.manager.Register(context.Background(), RegisterRequest{
		Username:  username,
		Email:     email,
		Password1: password,
		Password2: password,
	})
	require.NoError(t, err)
	return session
}

var errStoreDown = errors.New("store down")

var errNoEntropy = errors.New("entropy source unavailable")

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errNoEntropy }
