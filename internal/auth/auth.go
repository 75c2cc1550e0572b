package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// Errors surfaced to the API layer.
var (
	ErrEmailTaken         = errors.New("auth: email already registered")
	ErrInvalidCredentials = errors.New("auth: invalid email or password")
	ErrInvalidToken       = errors.New("auth: invalid or expired token")
	ErrWeakPassword       = errors.New("auth: password must be at least 8 characters")
	ErrInvalidEmail       = errors.New("auth: invalid email address")
)

// TokenTTL is how long issued session tokens stay valid.
const TokenTTL = 7 * 24 * time.Hour

// Claims is the JWT payload for a session.
type Claims struct {
	UserID int `json:"user_id"`
	jwt.RegisteredClaims
}

// Service issues and verifies sessions over a user store.
type Service struct {
	store  *Store
	secret []byte
}

// NewService creates an auth service signing tokens with secret.
func NewService(store *Store, secret []byte) *Service {
	return &Service{store: store, secret: secret}
}

// Signup registers a new account and returns the user plus a session
// token.
func (s *Service) Signup(ctx context.Context, email, password string) (*User, string, error) {
	email = normalizeEmail(email)
	if !validEmail(email) {
		return nil, "", ErrInvalidEmail
	}
	if len(password) < 8 {
		return nil, "", ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("hash password: %w", err)
	}

	id, err := s.store.CreateUser(ctx, email, string(hash))
	if err != nil {
		return nil, "", err
	}

	user, err := s.store.GetUserByID(ctx, id)
	if err != nil {
		return nil, "", err
	}

	token, err := s.IssueToken(id)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// Login verifies credentials and returns the user plus a session
// token. Unknown email and wrong password are indistinguishable.
func (s *Service) Login(ctx context.Context, email, password string) (*User, string, error) {
	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, "", err
	}
	if user == nil {
		return nil, "", ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.IssueToken(user.ID)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// User loads the account behind a verified token's user ID.
func (s *Service) User(ctx context.Context, id int) (*User, error) {
	return s.store.GetUserByID(ctx, id)
}

// IssueToken creates a signed session token for the user.
func (s *Service) IssueToken(userID int) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// VerifyToken validates a session token and returns its user ID.
func (s *Service) VerifyToken(tokenString string) (int, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return 0, ErrInvalidToken
	}
	return claims.UserID, nil
}

// validEmail is a light sanity check, not RFC validation.
func validEmail(email string) bool {
	at := strings.Index(email, "@")
	return at > 0 && strings.Contains(email[at+1:], ".") && !strings.ContainsAny(email, " \t")
}
