package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"

	"github.com/sgahotel/cs-service/internal/apperr"
	"github.com/sgahotel/cs-service/internal/config"
)

// TokenData is the caller identity extracted from a validated access token.
type TokenData struct {
	OrganizationID   string    `json:"organization_id,omitempty"`
	OrganizationName string    `json:"organization_name,omitempty"`
	UserID           string    `json:"user_id"`
	Name             string    `json:"name,omitempty"`
	GivenName        string    `json:"given_name,omitempty"`
	FamilyName       string    `json:"family_name,omitempty"`
	Username         string    `json:"preferred_username,omitempty"`
	Email            string    `json:"email,omitempty"`
	Roles            []string  `json:"roles"`
	Permissions      []string  `json:"permissions"`
	ExpiresAt        time.Time `json:"expires_at"`
}

// DisplayName picks the most human name the token offers.
func (t *TokenData) DisplayName() string {
	switch {
	case t.Name != "":
		return t.Name
	case strings.TrimSpace(t.GivenName+" "+t.FamilyName) != "":
		return strings.TrimSpace(t.GivenName + " " + t.FamilyName)
	case t.Username != "":
		return t.Username
	default:
		return t.Email
	}
}

func (t *TokenData) HasRole(role string) bool {
	for _, r := range t.Roles {
		if r == role {
			return true
		}
	}
	return false
}

func (t *TokenData) HasAnyRole(roles ...string) bool {
	for _, r := range roles {
		if t.HasRole(r) {
			return true
		}
	}
	return false
}

func (t *TokenData) HasAllRoles(roles ...string) bool {
	for _, r := range roles {
		if !t.HasRole(r) {
			return false
		}
	}
	return true
}

func (t *TokenData) HasPermission(resource string) bool {
	for _, p := range t.Permissions {
		if p == resource {
			return true
		}
	}
	return false
}

type accessRoles struct {
	Roles []string `json:"roles"`
}

// KeycloakClaims mirrors the Keycloak access token payload.
type KeycloakClaims struct {
	Name              string                 `json:"name"`
	GivenName         string                 `json:"given_name"`
	FamilyName        string                 `json:"family_name"`
	PreferredUsername string                 `json:"preferred_username"`
	Email             string                 `json:"email"`
	Organization      json.RawMessage        `json:"organization,omitempty"`
	OrganizationName  string                 `json:"organization_name,omitempty"`
	Org               string                 `json:"org,omitempty"`
	Company           string                 `json:"company,omitempty"`
	RealmAccess       accessRoles            `json:"realm_access"`
	ResourceAccess    map[string]accessRoles `json:"resource_access"`
	Authorization     struct {
		Permissions []struct {
			Rsname string `json:"rsname"`
		} `json:"permissions"`
	} `json:"authorization"`
	jwt.RegisteredClaims
}

// organization resolves the org claim. Keycloak organizations emit
// {"Name": {"id": "..."}}; older realms carry a plain name in one of the
// fallback claims.
func (c *KeycloakClaims) organization() (id, name string) {
	if len(c.Organization) > 0 {
		var byName map[string]struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(c.Organization, &byName); err == nil && len(byName) > 0 {
			names := make([]string, 0, len(byName))
			for n := range byName {
				names = append(names, n)
			}
			sort.Strings(names)
			return byName[names[0]].ID, names[0]
		}
		var list []string
		if err := json.Unmarshal(c.Organization, &list); err == nil && len(list) > 0 {
			return "", list[0]
		}
		var plain string
		if err := json.Unmarshal(c.Organization, &plain); err == nil && plain != "" {
			return "", plain
		}
	}
	for _, n := range []string{c.OrganizationName, c.Org, c.Company} {
		if n != "" {
			return "", n
		}
	}
	return "", ""
}

func (c *KeycloakClaims) toTokenData(clientID string) *TokenData {
	orgID, orgName := c.organization()

	seen := map[string]bool{}
	roles := []string{}
	add := func(rs []string) {
		for _, r := range rs {
			if r != "" && !seen[r] {
				seen[r] = true
				roles = append(roles, r)
			}
		}
	}
	add(c.RealmAccess.Roles)
	if clientID != "" {
		add(c.ResourceAccess[clientID].Roles)
	}

	perms := []string{}
	for _, p := range c.Authorization.Permissions {
		if p.Rsname != "" {
			perms = append(perms, p.Rsname)
		}
	}

	td := &TokenData{
		OrganizationID:   orgID,
		OrganizationName: orgName,
		UserID:           c.Subject,
		Name:             c.Name,
		GivenName:        c.GivenName,
		FamilyName:       c.FamilyName,
		Username:         c.PreferredUsername,
		Email:            c.Email,
		Roles:            roles,
		Permissions:      perms,
	}
	if c.ExpiresAt != nil {
		td.ExpiresAt = c.ExpiresAt.Time
	}
	return td
}

// KeycloakAuthService validates access tokens against the realm JWKS.
type KeycloakAuthService struct {
	cfg config.KeycloakConfig

	mu      sync.Mutex
	jwks    *keyfunc.JWKS
	keyFunc jwt.Keyfunc
}

func NewKeycloakAuthService(cfg config.KeycloakConfig) *KeycloakAuthService {
	return &KeycloakAuthService{cfg: cfg}
}

// NewKeycloakAuthServiceWithKeyfunc skips JWKS discovery and verifies with kf.
func NewKeycloakAuthServiceWithKeyfunc(cfg config.KeycloakConfig, kf jwt.Keyfunc) *KeycloakAuthService {
	return &KeycloakAuthService{cfg: cfg, keyFunc: kf}
}

// keys fetches the JWKS on first use and keeps it refreshed in the
// background. A failed fetch is retried on the next request.
func (s *KeycloakAuthService) keys() (jwt.Keyfunc, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.keyFunc != nil {
		return s.keyFunc, nil
	}

	jwks, err := keyfunc.Get(s.cfg.JWKSURL(), keyfunc.Options{
		RefreshErrorHandler: func(err error) {
			log.Warn().Err(err).Msg("background JWKS refresh failed")
		},
		RefreshInterval:   time.Hour,
		RefreshRateLimit:  5 * time.Minute,
		RefreshTimeout:    10 * time.Second,
		RefreshUnknownKID: true,
	})
	if err != nil {
		return nil, apperr.ErrIdentityUnavailable.Wrap(err)
	}
	s.jwks = jwks
	s.keyFunc = jwks.Keyfunc
	return s.keyFunc, nil
}

// ValidateToken verifies signature, expiry and (when configured) audience.
func (s *KeycloakAuthService) ValidateToken(tokenString string) (*TokenData, error) {
	kf, err := s.keys()
	if err != nil {
		return nil, err
	}

	alg := s.cfg.Algorithm
	if alg == "" {
		alg = "RS256"
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{alg}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(30 * time.Second),
	}
	if s.cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(s.cfg.Audience))
	}

	claims := &KeycloakClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, kf, opts...)
	if err != nil {
		return nil, apperr.ErrUnauthorized.WithMessage("Invalid token").Wrap(err)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, apperr.ErrUnauthorized.WithMessage("Invalid token claims")
	}
	return claims.toTokenData(s.cfg.ClientID), nil
}

// Close stops the background JWKS refresh.
func (s *KeycloakAuthService) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.jwks != nil {
		s.jwks.EndBackground()
	}
}

// ExtractTokenFromHeader extracts JWT token from Authorization header
func ExtractTokenFromHeader(authHeader string) (string, error) {
	if authHeader == "" {
		return "", errors.New("authorization header is required")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", fmt.Errorf("authorization header must be in format 'Bearer <token>'")
	}

	return strings.TrimSpace(parts[1]), nil
}
