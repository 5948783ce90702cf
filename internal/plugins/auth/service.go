package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/blake2b"

	"github.com/misri-labs/miqaat-admin/internal/apperror"
)

const (
	sessionKeyPrefix = "session:"
	stateKeyPrefix   = "oauth_state:"

	// stateTTL bounds how long a sign-in may take at the provider.
	stateTTL = 10 * time.Minute

	tokenBytes = 32
)

// AuthService signs admins in and validates their sessions.
type AuthService interface {
	// BeginLogin records a fresh state value and returns it with the
	// provider URL to redirect to.
	BeginLogin(ctx context.Context) (state, redirectURL string, err error)

	// CompleteLogin checks that the callback state matches the one in the
	// browser cookie and was issued by BeginLogin, exchanges the code and
	// creates a session for a whitelisted address. States are single-use.
	CompleteLogin(ctx context.Context, state, cookieState, code string) (token string, session *Session, err error)

	ValidateSession(ctx context.Context, token string) (*Session, error)
	DestroySession(ctx context.Context, token string) error

	// IsAllowed reports whether email may sign in.
	IsAllowed(email string) bool
}

// Whitelist lists who may sign in.
type Whitelist struct {
	Emails []string
	Domain string
}

type authService struct {
	provider   IdentityProvider
	redis      *redis.Client
	whitelist  Whitelist
	sessionTTL time.Duration
	now        func() time.Time
}

// NewAuthService creates the auth service.
func NewAuthService(provider IdentityProvider, rdb *redis.Client, whitelist Whitelist, sessionTTL time.Duration) AuthService {
	// Google returns addresses in the case the user typed; compare lowercased.
	wl := Whitelist{Domain: strings.ToLower(strings.TrimPrefix(whitelist.Domain, "@"))}
	for _, e := range whitelist.Emails {
		wl.Emails = append(wl.Emails, strings.ToLower(strings.TrimSpace(e)))
	}
	return &authService{
		provider:   provider,
		redis:      rdb,
		whitelist:  wl,
		sessionTTL: sessionTTL,
		now:        time.Now,
	}
}

func (s *authService) BeginLogin(ctx context.Context) (string, string, error) {
	state, err := randomToken()
	if err != nil {
		return "", "", apperror.NewInternal(fmt.Errorf("generating state: %w", err))
	}
	if err := s.redis.Set(ctx, stateKeyPrefix+state, "1", stateTTL).Err(); err != nil {
		return "", "", apperror.NewInternal(fmt.Errorf("storing state in Redis: %w", err))
	}
	return state, s.provider.AuthCodeURL(state), nil
}

func (s *authService) CompleteLogin(ctx context.Context, state, cookieState, code string) (string, *Session, error) {
	if state == "" || code == "" {
		return "", nil, apperror.NewBadRequest("sign-in response is incomplete")
	}
	// The cookie binds the callback to the browser that started the login.
	if subtle.ConstantTimeCompare([]byte(state), []byte(cookieState)) != 1 {
		return "", nil, apperror.NewBadRequest("sign-in state does not match; please try again")
	}
	// GetDel makes the state single-use even if the callback is replayed.
	if err := s.redis.GetDel(ctx, stateKeyPrefix+state).Err(); err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil, apperror.NewBadRequest("sign-in expired; please try again")
		}
		return "", nil, apperror.NewInternal(fmt.Errorf("reading state from Redis: %w", err))
	}

	id, err := s.provider.Exchange(ctx, code)
	if err != nil {
		slog.Warn("identity exchange failed", slog.Any("error", err))
		return "", nil, apperror.NewUnauthorized("could not verify your Google account")
	}
	email := strings.ToLower(strings.TrimSpace(id.Email))
	if !id.EmailVerified {
		return "", nil, apperror.NewForbidden("your Google address is not verified")
	}
	if !s.IsAllowed(email) {
		slog.Warn("sign-in refused", slog.String("email", email))
		return "", nil, apperror.NewForbidden(fmt.Sprintf("%s is not allowed to use this dashboard", email))
	}

	session := &Session{
		Email:     email,
		Name:      id.Name,
		Picture:   id.Picture,
		CreatedAt: s.now().UTC(),
	}
	// Workspace accounts may hide the profile name.
	if session.Name == "" {
		session.Name = email
	}
	token, err := s.createSession(ctx, session)
	if err != nil {
		return "", nil, apperror.NewInternal(fmt.Errorf("creating session: %w", err))
	}

	slog.Info("admin signed in", slog.String("email", email))
	return token, session, nil
}

// IsAllowed matches exact whitelist addresses first, then the Workspace
// domain when one is configured.
func (s *authService) IsAllowed(email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return false
	}
	if slices.Contains(s.whitelist.Emails, email) {
		return true
	}
	return s.whitelist.Domain != "" && strings.HasSuffix(email, "@"+s.whitelist.Domain)
}

// ValidateSession loads the session for a cookie token. Missing or expired
// sessions are a 401.
func (s *authService) ValidateSession(ctx context.Context, token string) (*Session, error) {
	data, err := s.redis.Get(ctx, sessionKey(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, apperror.NewUnauthorized("session expired or invalid")
	}
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("reading session from Redis: %w", err))
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("unmarshaling session: %w", err))
	}
	// An address removed from the whitelist loses access immediately.
	if !s.IsAllowed(session.Email) {
		_ = s.redis.Del(ctx, sessionKey(token)).Err()
		return nil, apperror.NewUnauthorized("access revoked")
	}
	return &session, nil
}

func (s *authService) DestroySession(ctx context.Context, token string) error {
	if err := s.redis.Del(ctx, sessionKey(token)).Err(); err != nil {
		return apperror.NewInternal(fmt.Errorf("deleting session from Redis: %w", err))
	}
	return nil
}

// createSession stores session under the hashed token and returns the raw
// token for the cookie.
func (s *authService) createSession(ctx context.Context, session *Session) (string, error) {
	token, err := randomToken()
	if err != nil {
		return "", fmt.Errorf("generating session token: %w", err)
	}
	data, err := json.Marshal(session)
	if err != nil {
		return "", fmt.Errorf("marshaling session: %w", err)
	}
	if err := s.redis.Set(ctx, sessionKey(token), data, s.sessionTTL).Err(); err != nil {
		return "", fmt.Errorf("storing session in Redis: %w", err)
	}
	return token, nil
}

// sessionKey hashes the token so a Redis dump does not yield usable cookies.
func sessionKey(token string) string {
	sum := blake2b.Sum256([]byte(token))
	return sessionKeyPrefix + hex.EncodeToString(sum[:])
}

// randomToken returns tokenBytes of crypto/rand output, hex-encoded.
func randomToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
