package auth

import (
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/harrylevesque/orderscan/internal/config"
	"github.com/harrylevesque/orderscan/internal/utils"
)

// DebugGuard protects the debug routes with HTTP basic auth.
type DebugGuard struct {
	user string
	hash string
	open bool
}

func NewDebugGuard(cfg *config.Config) *DebugGuard {
	return &DebugGuard{user: cfg.DebugUser, hash: cfg.DebugPasswordHash, open: cfg.DebugOpen}
}

// Enabled reports whether the debug routes are served at all.
func (g *DebugGuard) Enabled() bool { return g.open || g.hash != "" }

// Check validates the request's basic auth credentials.
func (g *DebugGuard) Check(r *http.Request) error {
	if !g.Enabled() {
		return utils.New(http.StatusNotFound, "debug routes are disabled")
	}
	if g.open {
		return nil
	}
	username, password, ok := r.BasicAuth()
	if !ok || username != g.user || !CheckPasswordHash(password, g.hash) {
		return utils.Wrap(http.StatusUnauthorized, "invalid debug credentials", ErrUnauthenticated)
	}
	return nil
}

func (g *DebugGuard) Middleware(onError ErrorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := g.Check(r); err != nil {
				if utils.StatusOf(err) == http.StatusUnauthorized {
					w.Header().Set("WWW-Authenticate", `Basic realm="orderscan debug"`)
				}
				onError(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// HashPassword hashes the password
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckPasswordHash checks if the password matches the hash
func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
