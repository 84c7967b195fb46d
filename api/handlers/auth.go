package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/paissahouse/paissadb/api/config"
)

// Token claims are fixed by the PaissaHouse plugin protocol.
const (
	jwtIssuer   = "PaissaDB"
	jwtAudience = "PaissaHouse"
)

// Context keys for auth
type contextKey string

const sweeperContextKey contextKey = "sweeper_id"

// SweeperClaims is the session token payload. Tokens carry no expiry;
// a sweeper identity stays valid until the signing secret rotates.
type SweeperClaims struct {
	CID int64 `json:"cid"`
	jwt.RegisteredClaims
}

// IssueToken signs a session token for the given sweeper id.
func IssueToken(cid int64, now time.Time) (string, error) {
	claims := SweeperClaims{
		CID: cid,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   jwtIssuer,
			Audience: jwt.ClaimStrings{jwtAudience},
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(config.JWTSecret))
}

// VerifyToken validates a session token and returns the sweeper id.
// Only HS256 is accepted, and both issuer and audience must match.
func VerifyToken(token string) (int64, error) {
	var claims SweeperClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return []byte(config.JWTSecret), nil
	},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(jwtIssuer),
		jwt.WithAudience(jwtAudience),
	)
	if err != nil {
		return 0, err
	}
	return claims.CID, nil
}

// RequireSweeper middleware returns 401 unless the request carries a
// valid bearer session token; the sweeper id is attached to the
// request context.
func RequireSweeper(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractBearerToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}

		cid, err := VerifyToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid session token")
			return
		}

		ctx := context.WithValue(r.Context(), sweeperContextKey, cid)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SweeperFromContext returns the authenticated sweeper id, if any.
func SweeperFromContext(ctx context.Context) (int64, bool) {
	cid, ok := ctx.Value(sweeperContextKey).(int64)
	return cid, ok
}

// SetSweeperInContext is a test helper that attaches a sweeper id to
// the context without going through the auth middleware.
func SetSweeperInContext(ctx context.Context, cid int64) context.Context {
	return context.WithValue(ctx, sweeperContextKey, cid)
}

func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	return strings.TrimPrefix(auth, "Bearer ")
}
