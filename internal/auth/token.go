// Package auth authenticates POS extension requests and resolves the shop
// credentials used for upstream calls.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/harrylevesque/orderscan/internal/config"
	"github.com/harrylevesque/orderscan/internal/utils"
)

// ErrUnauthenticated is the 401 returned for missing or rejected tokens.
var ErrUnauthenticated = &utils.CustomError{Code: http.StatusUnauthorized, Message: "authentication required"}

// SessionClaims are the claims of a POS/App Bridge session token.
type SessionClaims struct {
	// Dest is the shop URL, https://<shop>.myshopify.com.
	Dest string `json:"dest"`
	SID  string `json:"sid,omitempty"`
	jwt.RegisteredClaims
}

// Shop returns the normalized shop domain named by dest.
func (c *SessionClaims) Shop() string {
	return config.NormalizeShop(c.Dest)
}

// Verifier checks session tokens signed with the app secret.
type Verifier struct {
	apiKey string
	secret []byte
	leeway time.Duration
}

func NewVerifier(apiKey, apiSecret string) *Verifier {
	return &Verifier{apiKey: apiKey, secret: []byte(apiSecret), leeway: 5 * time.Second}
}

// Verify parses tokenString and returns its claims. The signature must be
// HS256, aud must be the API key and dest must name a valid shop.
func (v *Verifier) Verify(tokenString string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(v.apiKey),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.leeway),
	)
	if err != nil {
		return nil, utils.Wrap(http.StatusUnauthorized, "invalid session token", err)
	}

	shop := claims.Shop()
	if !config.ValidShop(shop) {
		return nil, utils.Wrap(http.StatusUnauthorized, "session token names no shop", ErrUnauthenticated)
	}
	if iss := config.NormalizeShop(claims.Issuer); iss != "" && iss != shop {
		return nil, utils.Wrap(http.StatusUnauthorized, "session token issuer does not match dest", ErrUnauthenticated)
	}
	return claims, nil
}

// Sign mints a session token for shop. The CLI and tests use it to call the
// service the way the POS extension does.
func (v *Verifier) Sign(shop string, ttl time.Duration) (string, error) {
	if !config.ValidShop(shop) {
		return "", fmt.Errorf("invalid shop domain %q", shop)
	}
	now := time.Now()
	claims := SessionClaims{
		Dest: "https://" + shop,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "https://" + shop + "/admin",
			Audience:  jwt.ClaimStrings{v.apiKey},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        utils.NewTraceID(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// ExtractToken returns the bearer token from the Authorization header.
func ExtractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// IsUnauthenticated reports whether err should be answered with 401.
func IsUnauthenticated(err error) bool {
	return errors.Is(err, ErrUnauthenticated) || utils.StatusOf(err) == http.StatusUnauthorized
}
