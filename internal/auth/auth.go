// Package auth issues and validates the admin session tokens. There is a
// single operator account configured through the environment; sessions
// are stateless HS256 JWTs.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	dErrors "github.com/karlutxo/zk-tools/pkg/domain-errors"
)

const issuer = "zk-tools"

// Claims are the session token claims.
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Service checks operator credentials and manages session tokens.
type Service struct {
	signingKey   []byte
	sessionTTL   time.Duration
	adminUser    string
	passwordHash string
}

func New(signingKey, adminUser, passwordHash string, sessionTTL time.Duration) *Service {
	return &Service{
		signingKey:   []byte(signingKey),
		sessionTTL:   sessionTTL,
		adminUser:    adminUser,
		passwordHash: passwordHash,
	}
}

// Login verifies the credentials and issues a signed session token.
func (s *Service) Login(username, password string) (string, error) {
	if s.adminUser == "" || s.passwordHash == "" {
		return "", dErrors.New(dErrors.CodeUnauthorized, "no operator account is configured")
	}
	if username != s.adminUser {
		return "", dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(s.passwordHash), []byte(password)); err != nil {
		return "", dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.sessionTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    issuer,
			ID:        uuid.NewString(),
		},
	})
	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", dErrors.Wrap(dErrors.CodeInternal, "sign session token", err)
	}
	return signed, nil
}

// Verify validates a session token and returns the operator name. It
// satisfies the auth middleware's token validator.
func (s *Service) Verify(tokenString string) (string, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", dErrors.New(dErrors.CodeUnauthorized, "session has expired")
		}
		return "", dErrors.New(dErrors.CodeUnauthorized, "invalid session token")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return "", dErrors.New(dErrors.CodeUnauthorized, "invalid session token")
	}
	return claims.Username, nil
}
