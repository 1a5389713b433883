package backendtwin

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	tokenAccess  = "access"
	tokenRefresh = "refresh"
)

type claims struct {
	jwt.RegisteredClaims
	TokenType  string `json:"token_type"`
	Generation int64  `json:"gen"`
}

var errTokenInvalid = errors.New("token invalid")

func (t *Twin) mint(username, typ string) (string, error) {
	ttl := t.opts.AccessTTL
	gen := t.accessGen.Load()
	if typ == tokenRefresh {
		ttl = 24 * time.Hour
		gen = t.refreshGen.Load()
	}
	now := time.Now()
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		TokenType:  typ,
		Generation: gen,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("signing %s token: %w", typ, err)
	}
	return signed, nil
}

func (t *Twin) parse(raw, typ string) (*claims, error) {
	c := &claims{}
	_, err := jwt.ParseWithClaims(raw, c, func(*jwt.Token) (any, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, errTokenInvalid
	}
	if c.TokenType != typ {
		return nil, errTokenInvalid
	}
	gen := t.accessGen.Load()
	if typ == tokenRefresh {
		gen = t.refreshGen.Load()
	}
	if c.Generation < gen {
		return nil, errTokenInvalid
	}
	return c, nil
}

// authenticate mirrors JWTAuthentication: a missing header is anonymous,
// a present but bad token is rejected even on public routes.
func (t *Twin) authenticate(r *http.Request) (*user, bool, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, false, nil
	}
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || raw == "" {
		return nil, true, errTokenInvalid
	}
	c, err := t.parse(raw, tokenAccess)
	if err != nil {
		return nil, true, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	u, ok := t.users[c.Subject]
	if !ok {
		return nil, true, errTokenInvalid
	}
	return u, true, nil
}

func tokenNotValid(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
	writeJSON(w, http.StatusUnauthorized, map[string]any{
		"detail": "Given token not valid for any token type",
		"code":   "token_not_valid",
		"messages": []map[string]string{
			{"token_class": "AccessToken", "token_type": "access", "message": "Token is invalid or expired"},
		},
	})
}

func notAuthenticated(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
	writeJSON(w, http.StatusUnauthorized, map[string]string{
		"detail": "Authentication credentials were not provided.",
	})
}
