package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/acctly/internal/auth/service"
	"github.com/aussiebroadwan/acctly/internal/auth/store"
	"github.com/aussiebroadwan/acctly/pkg/httpx"
	"github.com/aussiebroadwan/acctly/pkg/jwtx"
	"github.com/aussiebroadwan/acctly/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	keys         *jwtx.KeySet
	verifier     jwtx.Verifier
	issuer       string
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store        store.Store
	Users        *service.UserService
	Login        *service.LoginService
	Enrollment   *service.EnrollmentService
	Verification *service.VerificationService

	// CachePing reports Redis health on /readyz. Nil when no cache is configured.
	CachePing func(ctx context.Context) error

	// Limits are read by ApplyRoutes.
	Limits httpx.Limits
}

func NewRouter(
	keys *jwtx.KeySet,
	verifier jwtx.Verifier,
	issuer, buildVersion string,
	st store.Store,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		keys:         keys,
		verifier:     verifier,
		issuer:       issuer,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
		Limits:       httpx.DefaultLimits(),
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

// EnableCORS adds a CORS middleware for the given origins after logging.
func (r *Router) EnableCORS(origins []string) {
	if len(origins) == 0 {
		return
	}
	r.middlewares = append(r.middlewares, httpx.CORS(origins))
}

func (r *Router) ApplyRoutes() {
	r.registerAccount()
	r.registerLogin()
	r.registerMFA()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			Acctly Account Service API
//	@version		0.1.0
//	@description	Password login with optional second factors: an authenticator app (TOTP) or
//	@description	six digit codes sent by email.
//	@description
//	@description				Session tokens are signed using EdDSA (Ed25519) and can be verified using the JWKS endpoint.
//
//	@contact.name				AussieBroadWAN Team
//	@contact.url				https://github.com/aussiebroadwan/acctly
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@schemes					http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Session token. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerAccount() {
	h := &AccountHandler{Users: r.Users, Verification: r.Verification}

	// POST /signup - strict rate limit by IP (public signup endpoint)
	r.Mux.Handle("POST /v1/signup",
		httpx.Chain(http.HandlerFunc(h.HandleSignup),
			httpx.RateLimitByIP(r.Limits.Credential),
		),
	)

	// Address verification sends mail, so requests share the strict budget per user
	r.Mux.Handle("POST /v1/email/verify",
		httpx.Chain(http.HandlerFunc(h.HandleVerifyRequest),
			httpx.AuthnMiddleware(r.verifier),
			httpx.RateLimitByUser(r.Limits.Credential),
		),
	)
	r.Mux.Handle("POST /v1/email/confirm",
		httpx.Chain(http.HandlerFunc(h.HandleVerifyConfirm),
			httpx.AuthnMiddleware(r.verifier),
			httpx.RateLimitByUser(r.Limits.Credential),
		),
	)
}

func (r *Router) registerLogin() {
	h := &LoginHandler{Login: r.Login}

	// POST /login - rate limited by IP + email field to slow credential stuffing
	r.Mux.Handle("POST /v1/login",
		httpx.Chain(http.HandlerFunc(h.HandleLogin),
			httpx.RateLimitByIPAndJSONField(r.Limits.Credential, "email"),
		),
	)

	// Second factor attempts are also counted per account by the service
	r.Mux.Handle("POST /v1/login/verify",
		httpx.Chain(http.HandlerFunc(h.HandleVerify),
			httpx.RateLimitByIP(r.Limits.Credential),
		),
	)
	r.Mux.Handle("POST /v1/login/resend",
		httpx.Chain(http.HandlerFunc(h.HandleResend),
			httpx.RateLimitByIP(r.Limits.Credential),
		),
	)
}

func (r *Router) registerMFA() {
	h := &MFAHandler{Enrollment: r.Enrollment}

	securedEnroll := httpx.Chain(http.HandlerFunc(h.HandleEnroll),
		httpx.AuthnMiddleware(r.verifier),
		httpx.RateLimitByUser(r.Limits.Account),
	)

	// Confirm is authorised by the enrollment token, not a session
	confirm := httpx.Chain(http.HandlerFunc(h.HandleConfirm),
		httpx.RateLimitByIP(r.Limits.Credential),
	)

	securedEnableEmail := httpx.Chain(http.HandlerFunc(h.HandleEnableEmail),
		httpx.AuthnMiddleware(r.verifier),
		httpx.RateLimitByUser(r.Limits.Account),
	)

	// Disable checks a password and maybe a code, so it gets the strict budget
	securedDisable := httpx.Chain(http.HandlerFunc(h.HandleDisable),
		httpx.AuthnMiddleware(r.verifier),
		httpx.RateLimitByUser(r.Limits.Credential),
	)

	securedStatus := httpx.Chain(http.HandlerFunc(h.HandleStatus),
		httpx.AuthnMiddleware(r.verifier),
		httpx.RateLimitByUser(r.Limits.Status),
	)

	r.Mux.Handle("POST /v1/mfa/app/enroll", securedEnroll)
	r.Mux.Handle("POST /v1/mfa/app/confirm", confirm)
	r.Mux.Handle("POST /v1/mfa/email/enable", securedEnableEmail)
	r.Mux.Handle("POST /v1/mfa/disable", securedDisable)
	r.Mux.Handle("GET /v1/mfa", securedStatus)
}

func (r *Router) registerSystem() {
	// GET /jwks.json - public endpoint with high limit
	r.Mux.Handle("GET /.well-known/jwks.json",
		httpx.Chain(JWKSHandler(r.keys),
			httpx.RateLimitByIP(r.Limits.Public),
		),
	)

	// Health check endpoints - lenient rate limits (monitoring systems may poll frequently)
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(r.Limits.Status),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store, r.keys, r.CachePing),
			httpx.RateLimitByIP(r.Limits.Status),
		),
	)
}
