package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"ecoindex/internal/core"
)

// Audience separates session tokens from password reset tokens.
type Audience int

const (
	AudienceAuth Audience = iota
	AudienceReset
)

// TokenConfig configures the TokenService. Zero fields take the defaults
// below.
type TokenConfig struct {
	Secret        string        `yaml:"secret"`
	Issuer        string        `yaml:"issuer"`
	AuthAudience  string        `yaml:"auth_audience"`
	ResetAudience string        `yaml:"reset_audience"`
	AuthTTL       time.Duration `yaml:"auth_ttl"`
	ResetTTL      time.Duration `yaml:"reset_ttl"`
	Leeway        time.Duration `yaml:"leeway"`
}

const (
	DefaultIssuer        = "ecoindex.io"
	DefaultAuthAudience  = "ecoindex:auth"
	DefaultResetAudience = "ecoindex:reset"
	DefaultAuthTTL       = 7 * 24 * time.Hour
	DefaultResetTTL      = 24 * time.Hour
)

// minSecretLen is the shortest HS256 secret accepted.
const minSecretLen = 16

func (c TokenConfig) withDefaults() TokenConfig {
	if c.Issuer == "" {
		c.Issuer = DefaultIssuer
	}
	if c.AuthAudience == "" {
		c.AuthAudience = DefaultAuthAudience
	}
	if c.ResetAudience == "" {
		c.ResetAudience = DefaultResetAudience
	}
	if c.AuthTTL <= 0 {
		c.AuthTTL = DefaultAuthTTL
	}
	if c.ResetTTL <= 0 {
		c.ResetTTL = DefaultResetTTL
	}
	return c
}

// TokenService issues and validates HS256 tokens whose subject is the user's
// email.
type TokenService struct {
	cfg TokenConfig
	now func() time.Time
}

// NewTokenService validates cfg and returns a TokenService.
func NewTokenService(cfg TokenConfig) (*TokenService, error) {
	cfg = cfg.withDefaults()
	if len(cfg.Secret) < minSecretLen {
		return nil, fmt.Errorf("token secret must be at least %d bytes", minSecretLen)
	}
	if cfg.AuthAudience == cfg.ResetAudience {
		return nil, errors.New("auth and reset audiences must differ")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	return &TokenService{cfg: cfg, now: time.Now}, nil
}

func (s *TokenService) audience(a Audience) (string, time.Duration, error) {
	switch a {
	case AudienceAuth:
		return s.cfg.AuthAudience, s.cfg.AuthTTL, nil
	case AudienceReset:
		return s.cfg.ResetAudience, s.cfg.ResetTTL, nil
	default:
		return "", 0, fmt.Errorf("unknown token audience %d", a)
	}
}

// TTL returns how long tokens scoped to a stay valid.
func (s *TokenService) TTL(a Audience) time.Duration {
	_, ttl, _ := s.audience(a)
	return ttl
}

// Issue signs a token for subject scoped to a.
func (s *TokenService) Issue(subject string, a Audience) (string, error) {
	aud, ttl, err := s.audience(a)
	if err != nil {
		return "", err
	}
	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    s.cfg.Issuer,
		Audience:  jwt.ClaimStrings{aud},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.Secret))
}

// Subject validates token against audience a and returns its subject. Any
// failure is reported as core.ErrUnauthorized.
func (s *TokenService) Subject(token string, a Audience) (string, error) {
	aud, _, err := s.audience(a)
	if err != nil {
		return "", err
	}
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.cfg.Issuer),
		jwt.WithAudience(aud),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	}
	if s.cfg.Leeway > 0 {
		options = append(options, jwt.WithLeeway(s.cfg.Leeway))
	}
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.NewParser(options...).ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return []byte(s.cfg.Secret), nil
	})
	if err != nil {
		return "", fmt.Errorf("could not validate token credentials: %w: %w", core.ErrUnauthorized, err)
	}
	if !parsed.Valid || claims.Subject == "" {
		return "", core.Unauthorizedf("could not validate token credentials")
	}
	return claims.Subject, nil
}
