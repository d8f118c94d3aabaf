package devserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const tokenLifetime = 30 * 24 * time.Hour

var errBadCredentials = errors.New("invalid username or password")

type account struct {
	id       string
	username string
	hash     []byte
}

type claims struct {
	UserID   string `json:"uid"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// authenticator checks passwords and issues bearer tokens
type authenticator struct {
	secret   []byte
	accounts map[string]account // by username
	now      func() time.Time
}

func newAuthenticator(secret string, users map[string]string, cost int, now func() time.Time) (*authenticator, error) {
	a := &authenticator{
		secret:   []byte(secret),
		accounts: make(map[string]account, len(users)),
		now:      now,
	}
	for username, password := range users {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
		if err != nil {
			return nil, fmt.Errorf("hash password for %s: %w", username, err)
		}
		a.accounts[username] = account{
			id:       uuid.NewSHA1(uuid.NameSpaceOID, []byte(username)).String(),
			username: username,
			hash:     hash,
		}
	}
	return a, nil
}

func (a *authenticator) login(username, password string) (account, string, error) {
	acct, ok := a.accounts[username]
	if !ok {
		return account{}, "", errBadCredentials
	}
	if err := bcrypt.CompareHashAndPassword(acct.hash, []byte(password)); err != nil {
		return account{}, "", errBadCredentials
	}

	now := a.now()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		UserID:   acct.id,
		Username: acct.username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   acct.id,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenLifetime)),
		},
	}).SignedString(a.secret)
	if err != nil {
		return account{}, "", fmt.Errorf("sign token: %w", err)
	}
	return acct, token, nil
}

func (a *authenticator) parse(token string) (*claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.secret, nil
	}, jwt.WithTimeFunc(a.now))
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	c, ok := parsed.Claims.(*claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token")
	}
	return c, nil
}

type contextKey string

const userIDKey contextKey = "userID"

func userIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}

// identify attaches the bearer's user id to the request. Anonymous
// requests pass through; a bad token is rejected.
func (a *authenticator) identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			next.ServeHTTP(w, r)
			return
		}
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "bearer") {
			writeError(w, http.StatusUnauthorized, "invalid authorization header")
			return
		}
		c, err := a.parse(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userIDKey, c.UserID)))
	})
}

// requireUser rejects anonymous requests
func requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if userIDFrom(r.Context()) == "" {
			writeError(w, http.StatusUnauthorized, "sign-in required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
