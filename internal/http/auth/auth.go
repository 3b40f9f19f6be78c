package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"nuvelon-admin/internal/audit"
	"nuvelon-admin/internal/http/clientip"
	herrors "nuvelon-admin/internal/http/errors"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	log "github.com/sirupsen/logrus"
)

const CookieName = "auth-token"

var (
	ErrorMissingToken = errors.New("token not provided")
	ErrorInvalidToken = errors.New("invalid or expired token")
)

type Claims struct {
	jwt.RegisteredClaims
	UserId   string `json:"userId"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

type User struct {
	Id       string
	Username string
	Role     string
}

type contextKey struct{}

func WithUser(ctx context.Context, user User) context.Context {
	return context.WithValue(ctx, contextKey{}, user)
}

func UserFrom(ctx context.Context) (User, bool) {
	user, ok := ctx.Value(contextKey{}).(User)
	return user, ok
}

var authErrorHandler = herrors.NewErrorHandler("Auth")

// Verifier checks HS256 tokens issued by the login service.
type Verifier struct {
	secret   []byte
	security audit.Logger
}

func NewVerifier(secret string, security audit.Logger) *Verifier {
	return &Verifier{secret: []byte(secret), security: security}
}

func (v *Verifier) Verify(tokenString string) (User, error) {
	if tokenString == "" {
		return User{}, ErrorMissingToken
	}
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return User{}, fmt.Errorf("%w: %v", ErrorInvalidToken, err)
	}
	return User{Id: claims.UserId, Username: claims.Username, Role: claims.Role}, nil
}

func tokenFrom(r *http.Request) string {
	if cookie, err := r.Cookie(CookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return ""
}

func (v *Verifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := v.Verify(tokenFrom(r))
		if err != nil {
			ip := clientip.FromRequest(r)
			v.security.Log(audit.Event{
				Event:     "ACCESS_DENIED",
				IP:        ip,
				UserAgent: r.UserAgent(),
				Details:   map[string]any{"path": r.URL.Path, "method": r.Method},
				Success:   false,
				Error:     err.Error(),
			})
			msg := ErrorInvalidToken.Error()
			if errors.Is(err, ErrorMissingToken) {
				msg = ErrorMissingToken.Error()
			}
			authErrorHandler.WriteAndLogErrorMsg(w, msg, http.StatusUnauthorized, log.Fields{"ip": ip})
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}
