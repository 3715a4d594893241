// Package auth handles management-user login and JWT session tokens for the
// admin API. Client traffic authenticates with API keys instead.
package auth

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/soni0021/apiservices-backend/internal/app/domain/user"
	"github.com/soni0021/apiservices-backend/internal/app/storage"
	"github.com/soni0021/apiservices-backend/internal/errors"
	"github.com/soni0021/apiservices-backend/pkg/logger"
)

// Claims is the JWT payload issued at login.
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Service issues and validates session tokens.
type Service struct {
	users  storage.UserStore
	secret []byte
	ttl    time.Duration
	log    *logger.Logger
}

// New constructs the auth service. ttl<=0 defaults to 24h.
func New(users storage.UserStore, secret string, ttl time.Duration, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("auth")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Service{users: users, secret: []byte(secret), ttl: ttl, log: log}
}

// Login checks the credentials and returns a signed token.
func (s *Service) Login(ctx context.Context, email, password string) (string, user.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	u, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return "", user.User{}, errors.Unauthenticated("invalid email or password")
		}
		return "", user.User{}, errors.Internal("user lookup failed", err)
	}
	if !u.Active {
		return "", user.User{}, errors.Unauthenticated("account is disabled")
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return "", user.User{}, errors.Unauthenticated("invalid email or password")
	}

	token, err := s.issue(u)
	if err != nil {
		return "", user.User{}, errors.Internal("sign token", err)
	}

	s.log.WithField("user_id", u.ID).Info("user logged in")
	return token, u, nil
}

// Validate parses a token and returns its claims.
func (s *Service) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, errors.Unauthenticated("invalid or expired token")
	}
	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, errors.Unauthenticated("invalid token claims")
	}
	return claims, nil
}

// Register creates a management user with a bcrypt-hashed password.
func (s *Service) Register(ctx context.Context, email, password, role string) (user.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return user.User{}, errors.InvalidRequest("email and password are required")
	}
	if role == "" {
		role = user.RoleClient
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return user.User{}, errors.Internal("hash password", err)
	}

	return s.users.CreateUser(ctx, user.User{
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		Active:       true,
	})
}

// EnsureAdmin creates the bootstrap admin account if it does not exist yet.
func (s *Service) EnsureAdmin(ctx context.Context, email, password string) error {
	if email == "" || password == "" {
		return nil
	}
	if _, err := s.users.GetUserByEmail(ctx, strings.ToLower(email)); err == nil {
		return nil
	} else if !stderrors.Is(err, storage.ErrNotFound) {
		return err
	}
	_, err := s.Register(ctx, email, password, user.RoleAdmin)
	if err == nil {
		s.log.WithField("email", email).Info("bootstrap admin created")
	}
	return err
}

func (s *Service) issue(u user.User) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: u.ID,
		Email:  u.Email,
		Role:   u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			Subject:   u.ID,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}
