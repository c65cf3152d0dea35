package token

import (
	"errors"
	"fmt"
	"time"

	"thaliya-gateway/config"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrTokenExpired is returned for a structurally valid but expired token.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid is returned for a tampered or malformed token.
	ErrTokenInvalid = errors.New("invalid token")
)

// Claims are the decoded contents of a service bearer token.
type Claims struct {
	ClientID    string
	ServiceName string
	IssuedAt    time.Time
	ExpiresAt   time.Time
}

// Issuer mints and verifies HS256 service tokens. Stateless; tokens are
// bearer-carried only and never persisted.
type Issuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

func NewIssuer(cfg *config.Config) *Issuer {
	return &Issuer{
		secret: []byte(cfg.SecretKey),
		issuer: cfg.TokenIssuer,
		ttl:    cfg.TokenTTL,
	}
}

// TTL returns the configured token lifetime.
func (i *Issuer) TTL() time.Duration {
	return i.ttl
}

// Issue mints a signed token carrying the client id and tenant service
// name.
func (i *Issuer) Issue(clientID, serviceName string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":          clientID,
		"service_name": serviceName,
		"iss":          i.issuer,
		"iat":          now.Unix(),
		"exp":          now.Add(i.ttl).Unix(),
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify validates signature and expiry and returns the decoded claims.
// Expired and tampered tokens yield distinct errors.
func (i *Issuer) Verify(tokenString string) (*Claims, error) {
	parsed, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return i.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	mapClaims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return nil, ErrTokenInvalid
	}

	sub, _ := mapClaims["sub"].(string)
	serviceName, _ := mapClaims["service_name"].(string)
	if sub == "" || serviceName == "" {
		return nil, ErrTokenInvalid
	}

	claims := &Claims{
		ClientID:    sub,
		ServiceName: serviceName,
	}
	if iat, err := mapClaims.GetIssuedAt(); err == nil && iat != nil {
		claims.IssuedAt = iat.Time
	}
	if exp, err := mapClaims.GetExpirationTime(); err == nil && exp != nil {
		claims.ExpiresAt = exp.Time
	}
	return claims, nil
}
