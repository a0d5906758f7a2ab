package auth

import (
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/telecare/telecare/internal/platform/respond"
)

// Claims is the JWT payload issued at login and consumed by the session
// middleware.
type Claims struct {
	jwt.RegisteredClaims
	Email            string   `json:"email"`
	Roles            []string `json:"roles"`
	ProviderApproval string   `json:"provider_approval,omitempty"`
}

// JWTConfig configures token verification and issuance.
type JWTConfig struct {
	Issuer     string
	SigningKey []byte
	TokenTTL   time.Duration
}

// IssueToken signs a session token for the principal.
func IssueToken(cfg JWTConfig, p Principal) (string, error) {
	now := time.Now().UTC()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.ID.String(),
			Issuer:    cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(cfg.TokenTTL)),
		},
		Email:            p.Email,
		Roles:            p.RoleNames(),
		ProviderApproval: string(p.ProviderApproval),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(cfg.SigningKey)
}

// principalFromClaims maps verified claims onto a Principal value.
func principalFromClaims(claims *Claims) (Principal, error) {
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return Principal{}, err
	}

	p := Principal{
		ID:               id,
		Email:            claims.Email,
		ProviderApproval: ApprovalStatus(claims.ProviderApproval),
	}
	for _, role := range claims.Roles {
		switch role {
		case "admin":
			p.Roles.IsAdmin = true
		case "clerk":
			p.Roles.IsClerk = true
		case "provider":
			p.Roles.IsProvider = true
		case "patient":
			p.Roles.IsPatient = true
		}
	}
	return p, nil
}

// Middleware resolves the bearer token into a Principal and stores it on the
// request context. Requests without a valid token fail 401 before reaching
// any handler.
func Middleware(cfg JWTConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return respond.Unauthorized("missing authorization header")
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				return respond.Unauthorized("invalid authorization format")
			}

			claims := &Claims{}
			token, err := jwt.ParseWithClaims(parts[1], claims, func(t *jwt.Token) (interface{}, error) {
				return cfg.SigningKey, nil
			},
				jwt.WithValidMethods([]string{"HS256"}),
				jwt.WithIssuer(cfg.Issuer),
			)
			if err != nil || !token.Valid {
				return respond.Unauthorized("invalid token")
			}

			principal, err := principalFromClaims(claims)
			if err != nil {
				return respond.Unauthorized("invalid token subject")
			}

			ctx := WithPrincipal(c.Request().Context(), principal)
			ctx = WithClientIP(ctx, ClientIP(c.Request()))
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

// MustPrincipal returns the principal for the current request, failing 401
// when the session middleware did not run or the request is anonymous.
func MustPrincipal(c echo.Context) (Principal, error) {
	p, ok := PrincipalFromContext(c.Request().Context())
	if !ok {
		return Principal{}, respond.Unauthorized("no authenticated session")
	}
	return p, nil
}

// ClientIP extracts the caller address for audit rows: first hop of
// X-Forwarded-For, then X-Real-IP, then the socket address.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return strings.TrimSpace(fwd)
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	host := r.RemoteAddr
	if i := strings.LastIndexByte(host, ':'); i >= 0 {
		return host[:i]
	}
	return host
}
