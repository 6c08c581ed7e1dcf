// Package auth guards operator endpoints (cancel, admin) with a bearer credential.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	ModeNone  = "none"  // every caller is an operator
	ModeToken = "token" // static shared token
	ModeHMAC  = "hmac"  // HS256 JWT carrying a role claim
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
)

type Principal struct {
	Subject string
	Role    string
}

// IsOperator reports whether the principal may cancel runs and read admin data.
func (p Principal) IsOperator() bool { return p.Role == "admin" || p.Role == "operator" }

// Verifier validates bearer credentials.
type Verifier struct {
	Mode      string
	Token     string
	Secret    []byte
	RoleClaim string
	now       func() time.Time
}

// NewVerifier checks that the mode has the secret it needs. An empty mode means ModeNone.
func NewVerifier(mode, token, secret string) (*Verifier, error) {
	mode = strings.ToLower(strings.TrimSpace(mode))
	if mode == "" {
		mode = ModeNone
	}
	v := &Verifier{Mode: mode, Token: token, Secret: []byte(secret), RoleClaim: "role", now: time.Now}
	switch mode {
	case ModeNone:
	case ModeToken:
		if token == "" {
			return nil, fmt.Errorf("auth mode %q requires AUTH_TOKEN", mode)
		}
	case ModeHMAC:
		if secret == "" {
			return nil, fmt.Errorf("auth mode %q requires AUTH_HMAC_SECRET", mode)
		}
	default:
		return nil, fmt.Errorf("unsupported auth mode %q", mode)
	}
	return v, nil
}

// FromHeader verifies an Authorization header value.
func (v *Verifier) FromHeader(authz string) (Principal, error) {
	if v == nil || v.Mode == ModeNone {
		return Principal{Subject: "anonymous", Role: "admin"}, nil
	}
	if len(authz) < 7 || !strings.EqualFold(authz[:7], "bearer ") {
		return Principal{}, ErrUnauthorized
	}
	return v.Verify(strings.TrimSpace(authz[7:]))
}

func (v *Verifier) Verify(token string) (Principal, error) {
	switch v.Mode {
	case ModeToken:
		if subtle.ConstantTimeCompare([]byte(token), []byte(v.Token)) != 1 {
			return Principal{}, ErrUnauthorized
		}
		return Principal{Subject: "token", Role: "admin"}, nil
	case ModeHMAC:
		return v.verifyJWT(token)
	}
	return Principal{Subject: "anonymous", Role: "admin"}, nil
}

func (v *Verifier) verifyJWT(token string) (Principal, error) {
	segs := strings.Split(token, ".")
	if len(segs) != 3 {
		return Principal{}, fmt.Errorf("%w: malformed JWT", ErrUnauthorized)
	}
	var hdr struct {
		Alg string `json:"alg"`
	}
	if err := decodeSegment(segs[0], &hdr); err != nil {
		return Principal{}, err
	}
	if hdr.Alg != "HS256" {
		return Principal{}, fmt.Errorf("%w: unsupported alg %q", ErrUnauthorized, hdr.Alg)
	}
	sig, err := base64.RawURLEncoding.DecodeString(segs[2])
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	mac := hmac.New(sha256.New, v.Secret)
	mac.Write([]byte(segs[0] + "." + segs[1]))
	if !hmac.Equal(mac.Sum(nil), sig) {
		return Principal{}, fmt.Errorf("%w: bad signature", ErrUnauthorized)
	}
	var claims map[string]any
	if err := decodeSegment(segs[1], &claims); err != nil {
		return Principal{}, err
	}
	if exp, ok := claims["exp"].(float64); ok && v.now().Unix() >= int64(exp) {
		return Principal{}, fmt.Errorf("%w: token expired", ErrUnauthorized)
	}
	role, _ := claims[v.RoleClaim].(string)
	sub, _ := claims["sub"].(string)
	if role == "" {
		role = "user"
	}
	return Principal{Subject: sub, Role: strings.ToLower(role)}, nil
}

func decodeSegment(seg string, v any) error {
	b, err := base64.RawURLEncoding.DecodeString(seg)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	return nil
}

// SignHS256 issues a token for claims. Used by operators' tooling and tests.
func SignHS256(secret string, claims map[string]any) (string, error) {
	hdr := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))
	body, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}
	input := hdr + "." + base64.RawURLEncoding.EncodeToString(body)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(input))
	return input + "." + base64.RawURLEncoding.EncodeToString(mac.Sum(nil)), nil
}
