package token

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Decode failure classes. Exactly one of these is reported per call;
// underlying parser reasons are wrapped and reachable via errors.Is/As but
// are diagnostics only.
var (
	// ErrMalformed marks input that cannot be a token at all, or a payload
	// that decodes but lacks the required identity fields.
	ErrMalformed = errors.New("token malformed")
	// ErrExpired marks a structurally valid token whose exp has passed.
	ErrExpired = errors.New("token expired")
	// ErrInvalid marks a token that failed both decode strategies
	// (bad signature, undecodable payload).
	ErrInvalid = errors.New("token invalid")
)

// Token type discriminator carried in the "type" claim.
const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

// Tokens shorter than this cannot carry a payload and are rejected before
// any parsing.
const minTokenLength = 10

// Standard Base64 alphabet with optional trailing padding. Exact padding is
// deliberately not enforced; see Decode.
var legacyCharset = regexp.MustCompile(`^[A-Za-z0-9+/]+={0,2}$`)

// Claims is the logical token schema shared by both physical encodings.
// JSON field names match the wire format issued by the portal since the
// first release, so legacy payloads unmarshal directly.
type Claims struct {
	UserID        string   `json:"userId"`
	Email         string   `json:"email"`
	Name          string   `json:"name,omitempty"`
	Role          string   `json:"role"`
	Permissions   []string `json:"permissions,omitempty"`
	InstitutionID string   `json:"institutionId,omitempty"`
	SessionID     string   `json:"sessionId,omitempty"`
	TokenType     string   `json:"type,omitempty"`

	// Legacy is true when the claims were recovered through the unsigned
	// Base64 fallback rather than a verified signature.
	Legacy bool `json:"-"`

	jwt.RegisteredClaims
}

// Config holds the signing and verification parameters for a [Codec].
type Config struct {
	Secret     []byte
	Issuer     string
	Audience   string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Leeway     time.Duration
}

// Codec signs and verifies portal tokens. Safe for concurrent use.
type Codec struct {
	config Config
	now    func() time.Time
}

// NewCodec validates cfg and returns a ready [Codec].
func NewCodec(cfg Config) (*Codec, error) {
	if len(cfg.Secret) < 32 {
		return nil, errors.New("token secret must be at least 32 bytes")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}

	return &Codec{config: cfg, now: time.Now}, nil
}

// IssueInput carries the identity fields stamped into issued tokens.
type IssueInput struct {
	UserID        string
	Email         string
	Name          string
	Role          string
	Permissions   []string
	InstitutionID string
	SessionID     string
}

// IssueAccess signs a short-lived access token for in.
func (c *Codec) IssueAccess(in IssueInput) (string, error) {
	return c.issue(in, TypeAccess, c.config.AccessTTL)
}

// IssueRefresh signs a long-lived refresh token for in.
func (c *Codec) IssueRefresh(in IssueInput) (string, error) {
	return c.issue(in, TypeRefresh, c.config.RefreshTTL)
}

func (c *Codec) issue(in IssueInput, tokenType string, ttl time.Duration) (string, error) {
	if in.UserID == "" || in.Email == "" || in.Role == "" {
		return "", errors.New("issue requires userId, email, and role")
	}

	now := c.now()
	claims := Claims{
		UserID:        in.UserID,
		Email:         in.Email,
		Name:          in.Name,
		Role:          in.Role,
		Permissions:   in.Permissions,
		InstitutionID: in.InstitutionID,
		SessionID:     in.SessionID,
		TokenType:     tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if c.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{c.config.Audience}
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.config.Secret)
}

// Decode classifies and decodes raw under the dual-format contract:
//
//  1. obvious garbage is rejected as [ErrMalformed];
//  2. a three-segment string is parsed as a signed JWT: success wins,
//     expiry is final (a three-segment token was never a legacy token),
//     any other failure is retained and falls through;
//  3. the legacy path Base64-decodes the whole string and validates the
//     JSON payload's required fields and expiry;
//  4. if both strategies fail, [ErrInvalid] wraps both recorded reasons.
func (c *Codec) Decode(raw string) (*Claims, error) {
	if err := quickReject(raw); err != nil {
		return nil, err
	}

	var signedErr error
	if strings.Count(raw, ".") == 2 {
		claims, err := c.decodeSigned(raw)
		switch {
		case err == nil:
			return claims, nil
		case errors.Is(err, ErrExpired), errors.Is(err, ErrMalformed):
			return nil, err
		}
		signedErr = err
	}

	claims, legacyErr := c.decodeLegacy(raw)
	if legacyErr == nil {
		return claims, nil
	}
	if errors.Is(legacyErr, ErrExpired) || errors.Is(legacyErr, ErrMalformed) {
		return nil, legacyErr
	}

	if signedErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, errors.Join(signedErr, legacyErr))
	}
	return nil, fmt.Errorf("%w: %v", ErrInvalid, legacyErr)
}

func quickReject(raw string) error {
	if raw == "" || len(raw) < minTokenLength {
		return fmt.Errorf("%w: empty or too short", ErrMalformed)
	}
	if strings.ContainsRune(raw, 0) {
		return fmt.Errorf("%w: contains NUL bytes", ErrMalformed)
	}
	if strings.ContainsAny(raw, " \t\r\n") {
		return fmt.Errorf("%w: contains whitespace", ErrMalformed)
	}
	// Serialized nothings that browsers have historically stored as tokens.
	switch raw {
	case "null", "undefined":
		return fmt.Errorf("%w: serialized nil value", ErrMalformed)
	}
	return nil
}

func (c *Codec) decodeSigned(raw string) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	}
	if c.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(c.config.Leeway))
	}
	if c.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(c.config.Issuer))
	}
	if c.config.Audience != "" {
		options = append(options, jwt.WithAudience(c.config.Audience))
	}

	parser := jwt.NewParser(options...)
	parsed, err := parser.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return c.config.Secret, nil
	})
	if err != nil {
		// The library only reports expiry after the signature checked out.
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %v", ErrExpired, err)
		}
		return nil, fmt.Errorf("signed decode: %w", err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, fmt.Errorf("signed decode: %w", jwt.ErrTokenInvalidClaims)
	}
	if err := requireIdentity(claims); err != nil {
		return nil, err
	}

	return claims, nil
}

func (c *Codec) decodeLegacy(raw string) (*Claims, error) {
	if !legacyCharset.MatchString(raw) {
		return nil, errors.New("legacy decode: not base64")
	}

	// RawStdEncoding after trimming padding accepts every padding variant
	// of the same payload; re-encoding equality is intentionally not
	// checked (it rejects valid variants).
	data, err := base64.RawStdEncoding.DecodeString(strings.TrimRight(raw, "="))
	if err != nil {
		return nil, fmt.Errorf("legacy decode: %w", err)
	}

	var payload struct {
		UserID        string   `json:"userId"`
		Email         string   `json:"email"`
		Name          string   `json:"name"`
		Role          string   `json:"role"`
		Permissions   []string `json:"permissions"`
		InstitutionID string   `json:"institutionId"`
		SessionID     string   `json:"sessionId"`
		TokenType     string   `json:"type"`
		IssuedAt      int64    `json:"iat"`
		ExpiresAt     int64    `json:"exp"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("legacy decode: %w", err)
	}

	claims := &Claims{
		UserID:        payload.UserID,
		Email:         payload.Email,
		Name:          payload.Name,
		Role:          payload.Role,
		Permissions:   payload.Permissions,
		InstitutionID: payload.InstitutionID,
		SessionID:     payload.SessionID,
		TokenType:     payload.TokenType,
		Legacy:        true,
	}
	if err := requireIdentity(claims); err != nil {
		return nil, err
	}
	// Legacy payloads predate the access/refresh split.
	if claims.TokenType == "" {
		claims.TokenType = TypeAccess
	}

	if payload.IssuedAt > 0 {
		claims.IssuedAt = jwt.NewNumericDate(time.Unix(payload.IssuedAt, 0))
	}
	if payload.ExpiresAt > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(time.Unix(payload.ExpiresAt, 0))
		if payload.ExpiresAt <= c.now().Unix() {
			return nil, fmt.Errorf("%w: legacy token exp %d has passed", ErrExpired, payload.ExpiresAt)
		}
	}

	return claims, nil
}

func requireIdentity(claims *Claims) error {
	if claims.UserID == "" || claims.Email == "" || claims.Role == "" {
		return fmt.Errorf("%w: missing userId, email, or role", ErrMalformed)
	}
	return nil
}

// EncodeLegacy renders claims in the unsigned Base64 form. It exists for
// migration tooling and tests; new tokens are always signed.
func EncodeLegacy(claims *Claims) (string, error) {
	payload := map[string]interface{}{
		"userId": claims.UserID,
		"email":  claims.Email,
		"role":   claims.Role,
	}
	if claims.Name != "" {
		payload["name"] = claims.Name
	}
	if len(claims.Permissions) > 0 {
		payload["permissions"] = claims.Permissions
	}
	if claims.InstitutionID != "" {
		payload["institutionId"] = claims.InstitutionID
	}
	if claims.SessionID != "" {
		payload["sessionId"] = claims.SessionID
	}
	if claims.TokenType != "" {
		payload["type"] = claims.TokenType
	}
	if claims.IssuedAt != nil {
		payload["iat"] = claims.IssuedAt.Unix()
	}
	if claims.ExpiresAt != nil {
		payload["exp"] = claims.ExpiresAt.Unix()
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}
