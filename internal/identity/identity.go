package identity

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"isdanary/backend/internal/domain"
)

// Error codes reported by the identity service.
const (
	CodeInvalidCredential = "auth/invalid-credential"
	CodeWrongPassword     = "auth/wrong-password"
	CodeUserNotFound      = "auth/user-not-found"
	CodeEmailInUse        = "auth/email-already-in-use"
	CodeInvalidEmail      = "auth/invalid-email"
	CodeWeakPassword      = "auth/weak-password"
	CodeInvalidToken      = "auth/invalid-token"
)

const MinPasswordLength = 6

var ErrUserNotFound = errors.New("user not found")

type Error struct {
	Code string
}

func (e *Error) Error() string {
	return "identity: " + e.Code
}

func codeError(code string) error {
	return &Error{Code: code}
}

// Code extracts the identity error code from err, or "" when err did not
// come from this package.
func Code(err error) string {
	var idErr *Error
	if errors.As(err, &idErr) {
		return idErr.Code
	}
	return ""
}

type UserStore interface {
	FindUserByEmail(ctx context.Context, email string) (domain.UserAccount, error)
	CreateUser(ctx context.Context, user domain.UserAccount) (domain.UserAccount, error)
}

type Manager struct {
	mu       sync.Mutex
	secret   []byte
	tokenTTL time.Duration
	users    UserStore
	revoked  map[string]time.Time
	cost     int
	now      func() time.Time
}

type sessionClaims struct {
	jwtlib.RegisteredClaims
	Email string `json:"email"`
}

func NewManager(secret string, tokenTTL time.Duration, users UserStore) *Manager {
	if secret == "" {
		secret = "dev-change-me"
	}
	if tokenTTL <= 0 {
		tokenTTL = 8 * time.Hour
	}
	return &Manager{
		secret:   []byte(secret),
		tokenTTL: tokenTTL,
		users:    users,
		revoked:  make(map[string]time.Time),
		cost:     bcrypt.DefaultCost,
		now:      time.Now,
	}
}

// WithHashCost overrides the bcrypt cost for new password hashes.
func (m *Manager) WithHashCost(cost int) *Manager {
	if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
		m.cost = cost
	}
	return m
}

func (m *Manager) Login(ctx context.Context, email string, password string) (domain.LoginResponse, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return domain.LoginResponse{}, err
	}

	user, err := m.users.FindUserByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		return domain.LoginResponse{}, codeError(CodeUserNotFound)
	}
	if err != nil {
		return domain.LoginResponse{}, fmt.Errorf("lookup user: %w", err)
	}
	if !verifyPassword(user.PasswordHash, password) {
		return domain.LoginResponse{}, codeError(CodeInvalidCredential)
	}

	return m.issue(domain.Principal{ID: user.ID, Email: user.Email})
}

func (m *Manager) Signup(ctx context.Context, email string, password string) (domain.LoginResponse, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return domain.LoginResponse{}, err
	}
	if len(password) < MinPasswordLength {
		return domain.LoginResponse{}, codeError(CodeWeakPassword)
	}

	hash, err := hashPassword(password, m.cost)
	if err != nil {
		return domain.LoginResponse{}, fmt.Errorf("hash password: %w", err)
	}

	// Serialise the existence check and the insert so one email maps to one account.
	m.mu.Lock()
	defer m.mu.Unlock()

	_, err = m.users.FindUserByEmail(ctx, email)
	if err == nil {
		return domain.LoginResponse{}, codeError(CodeEmailInUse)
	}
	if !errors.Is(err, ErrUserNotFound) {
		return domain.LoginResponse{}, fmt.Errorf("lookup user: %w", err)
	}

	created, err := m.users.CreateUser(ctx, domain.UserAccount{
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    m.now().UTC(),
	})
	if err != nil {
		return domain.LoginResponse{}, fmt.Errorf("create user: %w", err)
	}

	return m.issue(domain.Principal{ID: created.ID, Email: created.Email})
}

// ParseToken validates an access token and returns its principal and token id.
func (m *Manager) ParseToken(tokenStr string) (domain.Principal, string, error) {
	claims := &sessionClaims{}
	token, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.secret, nil
	}, jwtlib.WithValidMethods([]string{"HS256"}), jwtlib.WithTimeFunc(m.now))
	if err != nil || !token.Valid {
		return domain.Principal{}, "", codeError(CodeInvalidToken)
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return domain.Principal{}, "", codeError(CodeInvalidToken)
	}

	m.mu.Lock()
	_, revoked := m.revoked[claims.ID]
	m.mu.Unlock()
	if revoked {
		return domain.Principal{}, "", codeError(CodeInvalidToken)
	}

	return domain.Principal{ID: sub, Email: claims.Email}, claims.ID, nil
}

// Logout revokes the token so it cannot open another session.
func (m *Manager) Logout(tokenStr string) error {
	claims := &sessionClaims{}
	_, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (interface{}, error) {
		return m.secret, nil
	}, jwtlib.WithValidMethods([]string{"HS256"}), jwtlib.WithTimeFunc(m.now))
	if err != nil {
		return codeError(CodeInvalidToken)
	}

	expiresAt := m.now().Add(m.tokenTTL)
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for id, exp := range m.revoked {
		if exp.Before(now) {
			delete(m.revoked, id)
		}
	}
	m.revoked[claims.ID] = expiresAt
	return nil
}

func (m *Manager) issue(principal domain.Principal) (domain.LoginResponse, error) {
	now := m.now().UTC()
	expiresAt := now.Add(m.tokenTTL)
	claims := sessionClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   principal.ID,
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
			Issuer:    "isdanary",
		},
		Email: principal.Email,
	}
	token, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return domain.LoginResponse{}, err
	}
	return domain.LoginResponse{
		AccessToken: token,
		ExpiresAt:   expiresAt.Format(time.RFC3339),
		Principal:   principal,
	}, nil
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", codeError(CodeInvalidEmail)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndex(email, "@")+1:], ".") {
		return "", codeError(CodeInvalidEmail)
	}
	return email, nil
}

func verifyPassword(stored string, input string) bool {
	if stored == "" || input == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(input)) == nil
}

func hashPassword(password string, cost int) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}
