// Package fixture serves a small local application with a login redirect,
// a consent page on a second origin, and a real OIDC issuer behind it, so
// the OAuth check has something to run against.
package fixture

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/google/uuid"
	"github.com/oauth2-proxy/mockoidc"
	"golang.org/x/oauth2"

	"github.com/kuitang/flowcheck/internal/obs"
	"github.com/kuitang/flowcheck/internal/urlutil"
)

const (
	sessionCookie = "flowcheck_session"
	stateCookie   = "flowcheck_oauth_state"
)

// User is the identity the issuer signs in.
type User struct {
	Name  string
	Email string
}

// DefaultUser renders as "JS" in the navbar.
var DefaultUser = User{Name: "John Smith", Email: "john.smith@example.com"}

// Options configures Start. Empty addresses pick a free loopback port.
type Options struct {
	AppAddr     string
	ConsentAddr string
	User        User
}

// Fixture is a running application, consent origin and issuer.
type Fixture struct {
	AppURL     string
	ConsentURL string
	IssuerURL  string

	user     User
	issuer   *mockoidc.MockOIDC
	verifier *oidc.IDTokenVerifier
	oauth    *oauth2.Config
	servers  []*http.Server

	mu       sync.Mutex
	sessions map[string]User

	closeOnce sync.Once
	closeErr  error
}

// Start brings up all three servers.
func Start(ctx context.Context, opts Options) (*Fixture, error) {
	if opts.User.Name == "" {
		opts.User = DefaultUser
	}
	logger := obs.Pkg("fixture")

	issuer, err := mockoidc.Run()
	if err != nil {
		return nil, fmt.Errorf("start oidc issuer: %w", err)
	}
	f := &Fixture{
		IssuerURL: issuer.Issuer(),
		user:      opts.User,
		issuer:    issuer,
		sessions:  make(map[string]User),
	}

	appLn, err := listen(opts.AppAddr)
	if err != nil {
		_ = issuer.Shutdown()
		return nil, err
	}
	consentLn, err := listen(opts.ConsentAddr)
	if err != nil {
		_ = appLn.Close()
		_ = issuer.Shutdown()
		return nil, err
	}
	f.AppURL = publicURL(opts.AppAddr, appLn.Addr())
	f.ConsentURL = publicURL(opts.ConsentAddr, consentLn.Addr())

	provider, err := oidc.NewProvider(ctx, issuer.Issuer())
	if err != nil {
		_ = appLn.Close()
		_ = consentLn.Close()
		_ = issuer.Shutdown()
		return nil, fmt.Errorf("discover oidc issuer: %w", err)
	}
	f.verifier = provider.Verifier(&oidc.Config{ClientID: issuer.ClientID})
	f.oauth = &oauth2.Config{
		ClientID:     issuer.ClientID,
		ClientSecret: issuer.ClientSecret,
		RedirectURL:  urlutil.BuildAbsolute(f.AppURL, "/auth/callback"),
		Endpoint:     provider.Endpoint(),
		Scopes:       []string{oidc.ScopeOpenID, "email", "profile"},
	}

	f.serve(appLn, "fixture_app", f.appRoutes())
	f.serve(consentLn, "fixture_consent", f.consentRoutes())

	logger.Info("fixture_started", "app", f.AppURL, "consent", f.ConsentURL, "issuer", f.IssuerURL)
	return f, nil
}

func (f *Fixture) serve(ln net.Listener, pkg string, mux *http.ServeMux) {
	srv := &http.Server{
		Handler:           obs.RequestContextMiddleware(obs.AccessLogMiddleware(pkg, mux)),
		ReadHeaderTimeout: 10 * time.Second,
	}
	f.servers = append(f.servers, srv)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			obs.Pkg("fixture").Error("serve_failed", "server", pkg, "error", err)
		}
	}()
}

// Close stops every server. Calls after the first return the first result.
func (f *Fixture) Close(ctx context.Context) error {
	f.closeOnce.Do(func() {
		var errList []error
		for _, srv := range f.servers {
			if err := srv.Shutdown(ctx); err != nil {
				errList = append(errList, err)
			}
		}
		if err := f.issuer.Shutdown(); err != nil {
			errList = append(errList, err)
		}
		f.closeErr = errors.Join(errList...)
	})
	return f.closeErr
}

// Initials returns the upper-cased first letters of the first and last words of name.
func Initials(name string) string {
	words := strings.Fields(name)
	switch len(words) {
	case 0:
		return ""
	case 1:
		return strings.ToUpper(firstLetter(words[0]))
	default:
		return strings.ToUpper(firstLetter(words[0]) + firstLetter(words[len(words)-1]))
	}
}

func firstLetter(w string) string {
	for _, r := range w {
		return string(r)
	}
	return ""
}

func listen(addr string) (net.Listener, error) {
	if addr == "" {
		addr = "127.0.0.1:0"
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	return ln, nil
}

// publicURL keeps the requested host, substituting localhost for wildcard binds.
func publicURL(requested string, actual net.Addr) string {
	host, _, _ := net.SplitHostPort(requested)
	actualHost, port, _ := net.SplitHostPort(actual.String())
	switch {
	case requested == "":
		host = actualHost
	case host == "" || host == "0.0.0.0" || host == "::":
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, port)
}

func (f *Fixture) newSession(u User) string {
	id := uuid.NewString()
	f.mu.Lock()
	f.sessions[id] = u
	f.mu.Unlock()
	return id
}

func (f *Fixture) sessionUser(r *http.Request) (User, bool) {
	c, err := r.Cookie(sessionCookie)
	if err != nil {
		return User{}, false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.sessions[c.Value]
	return u, ok
}
