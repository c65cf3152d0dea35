package credentials

import (
	"crypto/subtle"
	"errors"

	"thaliya-gateway/config"
)

// ErrInvalidCredentials is returned for an unknown client_id or a secret
// mismatch. Callers must not distinguish the two cases.
var ErrInvalidCredentials = errors.New("invalid client credentials")

type entry struct {
	clientSecret string
	serviceName  string
}

// Store is the static client_id -> (client_secret, service_name) mapping
// loaded at startup. Immutable during process lifetime.
type Store struct {
	byClientID map[string]entry
}

// NewStore builds the credential store from config.
func NewStore(cfg *config.Config) *Store {
	byClientID := make(map[string]entry, len(cfg.Tenants))
	for _, t := range cfg.Tenants {
		byClientID[t.ClientID] = entry{
			clientSecret: t.ClientSecret,
			serviceName:  t.ServiceName,
		}
	}
	return &Store{byClientID: byClientID}
}

// Authenticate checks client credentials and returns the tenant service
// name. The secret comparison is constant time.
func (s *Store) Authenticate(clientID, clientSecret string) (string, error) {
	cred, ok := s.byClientID[clientID]
	if !ok {
		// Burn a comparison anyway so unknown ids cost the same as
		// known ids with a wrong secret.
		subtle.ConstantTimeCompare([]byte(clientSecret), []byte(clientSecret))
		return "", ErrInvalidCredentials
	}

	if subtle.ConstantTimeCompare([]byte(cred.clientSecret), []byte(clientSecret)) != 1 {
		return "", ErrInvalidCredentials
	}
	return cred.serviceName, nil
}

// ServiceName returns the tenant for a client id without checking the
// secret, for verified-token contexts.
func (s *Store) ServiceName(clientID string) (string, bool) {
	cred, ok := s.byClientID[clientID]
	if !ok {
		return "", false
	}
	return cred.serviceName, true
}
