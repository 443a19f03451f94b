/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package backend

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	adminCookie   = "tf_admin"
	visitorCookie = "tf_visitor"
	adminSubject  = "admin"
)

var (
	errBadToken        = errors.New("invalid token")
	errTokenExpired    = errors.New("token expired")
	errLoginDisabled   = errors.New("admin login is not configured")
	errWrongPassword   = errors.New("wrong password")
	errAdminRequired   = errors.New("admin session required")
	errPremiumDownload = errors.New("download disabled for premium fonts")
)

type tokenClaims struct {
	Sub string `json:"sub"`
	Exp int64  `json:"exp"` // unix seconds
}

// signToken returns base64url(claims) "." base64url(HMAC-SHA256(claims)).
func signToken(secret, subject string, exp time.Time) (string, error) {
	b, err := json.Marshal(tokenClaims{Sub: subject, Exp: exp.Unix()})
	if err != nil {
		return "", err
	}
	h := hmac.New(sha256.New, []byte(secret))
	_, _ = h.Write(b)
	return base64.RawURLEncoding.EncodeToString(b) + "." + base64.RawURLEncoding.EncodeToString(h.Sum(nil)), nil
}

func verifyToken(secret, token string, now time.Time) (string, error) {
	payload, sig, ok := strings.Cut(token, ".")
	if !ok || strings.Contains(sig, ".") {
		return "", errBadToken
	}
	payloadB, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return "", errBadToken
	}
	sigB, err := base64.RawURLEncoding.DecodeString(sig)
	if err != nil {
		return "", errBadToken
	}
	h := hmac.New(sha256.New, []byte(secret))
	_, _ = h.Write(payloadB)
	if !hmac.Equal(h.Sum(nil), sigB) {
		return "", errBadToken
	}
	var claims tokenClaims
	if err := json.Unmarshal(payloadB, &claims); err != nil || claims.Sub == "" {
		return "", errBadToken
	}
	if claims.Exp < now.Unix() {
		return "", errTokenExpired
	}
	return claims.Sub, nil
}

// HashPassword returns a bcrypt hash suitable for admin.password_hash.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", errors.New("password must not be empty")
	}
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(b), nil
}

// checkPassword prefers the bcrypt hash and falls back to a plain
// password from the environment.
func (s *Server) checkPassword(password string) error {
	switch {
	case s.opts.AdminHash != "":
		if err := bcrypt.CompareHashAndPassword([]byte(s.opts.AdminHash), []byte(password)); err != nil {
			return errWrongPassword
		}
		return nil
	case s.opts.AdminPassword != "":
		if subtle.ConstantTimeCompare([]byte(s.opts.AdminPassword), []byte(password)) != 1 {
			return errWrongPassword
		}
		return nil
	}
	return errLoginDisabled
}

// adminToken extracts the session token from the Authorization header or
// the admin cookie.
func adminToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); len(auth) > 7 && strings.EqualFold(auth[:7], "Bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	if c, err := r.Cookie(adminCookie); err == nil {
		return c.Value
	}
	return ""
}

// isAdmin reports whether r carries a valid admin session.
func (s *Server) isAdmin(r *http.Request) bool {
	tok := adminToken(r)
	if tok == "" {
		return false
	}
	sub, err := verifyToken(s.opts.Secret, tok, s.now())
	return err == nil && sub == adminSubject
}

// withAdmin rejects requests without a valid admin session.
func (s *Server) withAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.isAdmin(r) {
			writeError(w, http.StatusUnauthorized, errAdminRequired)
			return
		}
		next(w, r)
	}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password string `json:"password"`
	}
	if err := decodeJSON(w, r, schemaLogin, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.checkPassword(req.Password); err != nil {
		status := http.StatusUnauthorized
		if errors.Is(err, errLoginDisabled) {
			status = http.StatusServiceUnavailable
		}
		s.log.WarnContext(r.Context(), "admin login rejected", slog.Any("err", err))
		writeError(w, status, err)
		return
	}
	exp := s.now().Add(s.opts.SessionTTL)
	tok, err := signToken(s.opts.Secret, adminSubject, exp)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     adminCookie,
		Value:    tok,
		Path:     "/",
		Expires:  exp,
		MaxAge:   int(s.opts.SessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   s.opts.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	s.log.InfoContext(r.Context(), "admin login")
	writeJSON(w, http.StatusOK, map[string]any{
		"token":     tok,
		"expiresAt": exp.UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     adminCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.opts.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"admin": s.isAdmin(r)})
}

// visitorID returns the anonymous visitor id, issuing a cookie when create
// is set and none exists yet.
func (s *Server) visitorID(w http.ResponseWriter, r *http.Request, create bool) string {
	if c, err := r.Cookie(visitorCookie); err == nil {
		if _, err := uuid.Parse(c.Value); err == nil {
			return c.Value
		}
	}
	if !create {
		return ""
	}
	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     visitorCookie,
		Value:    id,
		Path:     "/",
		MaxAge:   365 * 24 * 3600,
		HttpOnly: true,
		Secure:   s.opts.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}
