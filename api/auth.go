package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"hotel-billing/services"

	"github.com/golang-jwt/jwt/v5"
)

// SessionClaims carry the staff session inside the bearer token.
type SessionClaims struct {
	Tenant      string `json:"tenant"`
	DisplayName string `json:"tenant_name"`
	Admin       bool   `json:"admin"`
	jwt.RegisteredClaims
}

type tokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func (t tokenIssuer) issue(sess services.Session) (string, time.Time, error) {
	now := t.now()
	expires := now.Add(t.ttl)
	claims := SessionClaims{
		Tenant:      sess.TenantID,
		DisplayName: sess.DisplayName,
		Admin:       sess.IsAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sess.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expires, nil
}

func (t tokenIssuer) parse(tokenString string) (services.Session, error) {
	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return t.secret, nil
	}, jwt.WithTimeFunc(t.now), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return services.Session{}, errors.New("invalid token")
	}
	if claims.Tenant == "" {
		return services.Session{}, errors.New("invalid token claims")
	}
	sess := services.Session{
		TenantID:    claims.Tenant,
		DisplayName: claims.DisplayName,
		Username:    claims.Subject,
		IsAdmin:     claims.Admin,
	}
	if claims.IssuedAt != nil {
		sess.LoggedInAt = claims.IssuedAt.Time
	}
	return sess, nil
}

// authenticate puts the bearer token's session on the request context.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		tokenString, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || tokenString == "" {
			s.unauthorizedResponse(w, r, errors.New("authentication token required"))
			return
		}
		sess, err := s.tokens.parse(tokenString)
		if err != nil {
			s.unauthorizedResponse(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(services.WithSession(r.Context(), sess)))
	})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token       string    `json:"token"`
	ExpiresAt   time.Time `json:"expiresAt"`
	TenantID    string    `json:"tenantId"`
	DisplayName string    `json:"displayName"`
	Admin       bool      `json:"admin"`
}

func (s *Server) loginHandler(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := readJSON(w, r, &req); err != nil {
		s.badRequestResponse(w, r, err)
		return
	}

	sess, err := s.deps.Auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		s.errorResponse(w, r, err)
		return
	}
	token, expires, err := s.tokens.issue(sess)
	if err != nil {
		s.internalServerError(w, r, err)
		return
	}

	s.jsonResponse(w, http.StatusOK, loginResponse{
		Token:       token,
		ExpiresAt:   expires,
		TenantID:    sess.TenantID,
		DisplayName: sess.DisplayName,
		Admin:       sess.IsAdmin,
	})
}
