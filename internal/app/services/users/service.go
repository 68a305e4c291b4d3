package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/quickshop/catalog/internal/app/domain/user"
	"github.com/quickshop/catalog/internal/app/storage"
	"github.com/quickshop/catalog/pkg/logger"
)

// ErrInvalidCredentials is returned for unknown users and password
// mismatches alike, so callers cannot probe for registered emails.
var ErrInvalidCredentials = errors.New("invalid credentials")

// TokenIssuer is the iss claim stamped on issued tokens.
const TokenIssuer = "catalog-service"

const minPasswordLength = 8

// Claims is the JWT payload issued on login.
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email,omitempty"`
	Role   string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Service manages user registration and token issuance.
type Service struct {
	store    storage.UserStore
	secret   []byte
	tokenTTL time.Duration
	log      *logger.Logger
}

// New constructs a user service signing tokens with secret.
func New(store storage.UserStore, secret []byte, tokenTTL time.Duration, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("users")
	}
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &Service{store: store, secret: secret, tokenTTL: tokenTTL, log: log}
}

// Register creates a user with a bcrypt password hash.
func (s *Service) Register(ctx context.Context, email, password, role string) (user.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return user.User{}, fmt.Errorf("a valid email is required")
	}
	if len(password) < minPasswordLength {
		return user.User{}, fmt.Errorf("password must be at least %d characters", minPasswordLength)
	}
	role = strings.TrimSpace(role)
	if role == "" {
		role = user.RoleMember
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return user.User{}, fmt.Errorf("hash password: %w", err)
	}

	created, err := s.store.CreateUser(ctx, user.User{
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
	})
	if err != nil {
		return user.User{}, err
	}

	s.log.WithField("user_id", created.ID).Info("user registered")
	return created, nil
}

// Authenticate checks a credential pair against the store.
func (s *Service) Authenticate(ctx context.Context, email, password string) (user.User, error) {
	u, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		return user.User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return user.User{}, ErrInvalidCredentials
	}
	return u, nil
}

// IssueToken signs an HS256 JWT for the user.
func (s *Service) IssueToken(u user.User) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(s.tokenTTL)

	claims := &Claims{
		UserID: u.ID,
		Email:  u.Email,
		Role:   u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    TokenIssuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// ParseToken validates a token string and returns its claims.
func (s *Service) ParseToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}
