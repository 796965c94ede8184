package auth

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/harrylevesque/orderscan/internal/config"
	"github.com/harrylevesque/orderscan/internal/files"
	"github.com/harrylevesque/orderscan/internal/models"
	"github.com/harrylevesque/orderscan/internal/shopify"
	"github.com/harrylevesque/orderscan/internal/utils"
)

// SessionStore persists offline access tokens per shop.
type SessionStore interface {
	Load(shop string) (*models.Session, error)
	Save(sess *models.Session) error
	Delete(shop string) error
}

// Exchanger trades a session token for an offline access token.
type Exchanger interface {
	ExchangeToken(ctx context.Context, app shopify.TokenExchange, shop, sessionToken string) (*shopify.AccessToken, error)
}

// exchangeCooldown is how long a shop whose token exchange failed is
// answered 401 without another exchange attempt.
const exchangeCooldown = 30 * time.Second

// Authenticator resolves a request to shop credentials: stored session,
// then the static custom-app credentials for the configured shop, then
// token exchange.
type Authenticator struct {
	verifier  *Verifier
	sessions  SessionStore
	exchanger Exchanger
	app       shopify.TokenExchange
	static    shopify.Credentials
	logger    *utils.Logger

	mu     sync.Mutex
	failed map[string]time.Time
	now    func() time.Time
}

func NewAuthenticator(cfg *config.Config, sessions SessionStore, exchanger Exchanger, logger *utils.Logger) *Authenticator {
	if logger == nil {
		logger = utils.NewDiscardLogger()
	}
	return &Authenticator{
		verifier:  NewVerifier(cfg.APIKey, cfg.APISecret),
		sessions:  sessions,
		exchanger: exchanger,
		app:       shopify.TokenExchange{APIKey: cfg.APIKey, APISecret: cfg.APISecret},
		static:    shopify.Credentials{Shop: cfg.ShopDomain, AccessToken: cfg.AccessToken},
		logger:    logger,
		failed:    make(map[string]time.Time),
		now:       time.Now,
	}
}

func (a *Authenticator) Verifier() *Verifier { return a.verifier }

// Authenticate verifies the request's session token and returns credentials
// for the shop it names.
func (a *Authenticator) Authenticate(r *http.Request) (shopify.Credentials, error) {
	token := ExtractToken(r)
	if token == "" {
		return shopify.Credentials{}, ErrUnauthenticated
	}
	claims, err := a.verifier.Verify(token)
	if err != nil {
		return shopify.Credentials{}, err
	}
	shop := claims.Shop()
	log := a.logger.FromContext(r.Context()).WithField("shop", shop)

	if a.sessions != nil {
		sess, err := a.sessions.Load(shop)
		switch {
		case err == nil && sess.AccessToken != "":
			return shopify.Credentials{Shop: shop, AccessToken: sess.AccessToken}, nil
		case err != nil && !errors.Is(err, files.ErrSessionNotFound):
			log.WithError(err).Warn("Failed to load stored session")
		}
	}

	if a.static.Shop == shop && a.static.AccessToken != "" {
		return a.static, nil
	}

	if a.exchanger != nil && !a.coolingDown(shop) {
		tok, err := a.exchanger.ExchangeToken(r.Context(), a.app, shop, token)
		if err == nil {
			a.clearFailure(shop)
			a.remember(log, shop, tok)
			return shopify.Credentials{Shop: shop, AccessToken: tok.AccessToken}, nil
		}
		a.recordFailure(shop)
		log.WithError(err).Warn("Token exchange failed")
	}

	return shopify.Credentials{}, utils.Wrap(http.StatusUnauthorized, "no access token for shop "+shop, ErrUnauthenticated)
}

func (a *Authenticator) coolingDown(shop string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	at, ok := a.failed[shop]
	if !ok {
		return false
	}
	if a.now().Sub(at) >= exchangeCooldown {
		delete(a.failed, shop)
		return false
	}
	return true
}

func (a *Authenticator) recordFailure(shop string) {
	a.mu.Lock()
	a.failed[shop] = a.now()
	a.mu.Unlock()
}

func (a *Authenticator) clearFailure(shop string) {
	a.mu.Lock()
	delete(a.failed, shop)
	a.mu.Unlock()
}

// CredentialsFor returns credentials for shop without a session token:
// the stored session, else the static credentials when they match.
func (a *Authenticator) CredentialsFor(shop string) (shopify.Credentials, error) {
	shop = config.NormalizeShop(shop)
	if shop == "" {
		shop = a.static.Shop
	}
	if a.sessions != nil && shop != "" {
		if sess, err := a.sessions.Load(shop); err == nil && sess.AccessToken != "" {
			return shopify.Credentials{Shop: shop, AccessToken: sess.AccessToken}, nil
		}
	}
	if shop != "" && a.static.Shop == shop && a.static.AccessToken != "" {
		return a.static, nil
	}
	return shopify.Credentials{}, utils.Wrap(http.StatusUnauthorized, "no access token for shop "+shop, ErrUnauthenticated)
}

func (a *Authenticator) remember(log *logrus.Entry, shop string, tok *shopify.AccessToken) {
	if a.sessions == nil {
		return
	}
	err := a.sessions.Save(&models.Session{
		Shop:        shop,
		AccessToken: tok.AccessToken,
		Scope:       tok.Scope,
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		log.WithError(err).Error("Failed to store session")
		return
	}
	log.Info("Stored offline session")
}

// Forget drops the stored session for shop, for example after the
// upstream rejected its token.
func (a *Authenticator) Forget(shop string) {
	if a.sessions == nil {
		return
	}
	if err := a.sessions.Delete(shop); err != nil && !errors.Is(err, files.ErrSessionNotFound) {
		a.logger.WithError(err).WithField("shop", shop).Warn("Failed to delete session")
	}
}

// ErrorWriter renders an error response; the api package supplies it.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

// Middleware authenticates each request and stores the credentials in the
// request context.
func (a *Authenticator) Middleware(onError ErrorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			creds, err := a.Authenticate(r)
			if err != nil {
				onError(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithCredentials(r.Context(), creds)))
		})
	}
}

type credentialsKey struct{}

func WithCredentials(ctx context.Context, creds shopify.Credentials) context.Context {
	return context.WithValue(ctx, credentialsKey{}, creds)
}

// CredentialsFrom returns the credentials stored by Middleware.
func CredentialsFrom(ctx context.Context) (shopify.Credentials, bool) {
	creds, ok := ctx.Value(credentialsKey{}).(shopify.Credentials)
	return creds, ok
}
