package middleware

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	apierrors "github.com/untron/untron-v3-engine/internal/api/shared/errors"
	"github.com/untron/untron-v3-engine/internal/logger"
)

const credentialKey = "credential"

// AuthConfig holds authentication configuration
type AuthConfig struct {
	// JWTPublicKey is the PEM encoded RSA key that signs operator tokens
	JWTPublicKey string
	APIKeys      []string
}

// Credential is an authenticated caller. Subject is the token subject, empty for API keys.
type Credential struct {
	Scheme  string
	Subject string
}

// Authenticator checks Authorization headers against the configured key material
type Authenticator struct {
	publicKey *rsa.PublicKey
	keyErr    error
	apiKeys   map[string]bool
}

// NewAuthenticator parses the configured key material once
func NewAuthenticator(cfg AuthConfig) *Authenticator {
	a := &Authenticator{apiKeys: make(map[string]bool, len(cfg.APIKeys))}
	for _, key := range cfg.APIKeys {
		if key != "" {
			a.apiKeys[key] = true
		}
	}
	if cfg.JWTPublicKey == "" {
		a.keyErr = errors.New("JWT public key not configured")
	} else if a.publicKey, a.keyErr = jwt.ParseRSAPublicKeyFromPEM([]byte(cfg.JWTPublicKey)); a.keyErr != nil {
		a.keyErr = fmt.Errorf("failed to parse RSA public key: %w", a.keyErr)
	}
	return a
}

// Authenticate accepts "Bearer <RS256 JWT>" or "ApiKey <key>"
func (a *Authenticator) Authenticate(header string) (Credential, error) {
	scheme, value, ok := strings.Cut(header, " ")
	if header == "" {
		return Credential{}, errors.New("missing Authorization header")
	}
	if !ok {
		return Credential{}, errors.New("invalid Authorization header format")
	}

	switch strings.ToLower(scheme) {
	case "bearer":
		if a.keyErr != nil {
			return Credential{}, a.keyErr
		}
		claims := &jwt.RegisteredClaims{}
		_, err := jwt.ParseWithClaims(value, claims, func(*jwt.Token) (interface{}, error) {
			return a.publicKey, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}))
		if err != nil {
			return Credential{}, fmt.Errorf("failed to parse token: %w", err)
		}
		return Credential{Scheme: "jwt", Subject: claims.Subject}, nil

	case "apikey":
		if len(a.apiKeys) == 0 {
			return Credential{}, errors.New("no API keys configured")
		}
		if !a.apiKeys[value] {
			return Credential{}, errors.New("invalid API key")
		}
		return Credential{Scheme: "apikey"}, nil

	default:
		return Credential{}, fmt.Errorf("unsupported authorization type: %s", scheme)
	}
}

// Auth returns a gin middleware that rejects unauthenticated requests
func Auth(cfg AuthConfig) gin.HandlerFunc {
	authenticator := NewAuthenticator(cfg)
	return func(c *gin.Context) {
		cred, err := authenticator.Authenticate(c.GetHeader("Authorization"))
		if err != nil {
			logger.WarnCtx(c.Request.Context(), "Authentication failed",
				zap.Error(err),
				zap.String("path", c.Request.URL.Path),
				zap.String("client_ip", c.ClientIP()),
			)
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				apierrors.NewUnauthorizedError("Authentication failed", err.Error()))
			return
		}

		logger.DebugCtx(c.Request.Context(), "Authenticated",
			zap.String("scheme", cred.Scheme),
			zap.String("subject", cred.Subject),
			zap.String("path", c.Request.URL.Path),
		)
		c.Set(credentialKey, cred)
		c.Next()
	}
}

// SubjectAddress returns the authenticated subject when it is a hex address.
// API keys carry no subject, so operators authenticated that way name the caller in the body.
func SubjectAddress(c *gin.Context) (common.Address, bool) {
	v, ok := c.Get(credentialKey)
	if !ok {
		return common.Address{}, false
	}
	cred, _ := v.(Credential)
	if !common.IsHexAddress(cred.Subject) {
		return common.Address{}, false
	}
	return common.HexToAddress(cred.Subject), true
}
