package fixture

import (
	"html/template"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/oauth2-proxy/mockoidc"

	"github.com/kuitang/flowcheck/internal/obs"
	"github.com/kuitang/flowcheck/internal/urlutil"
)

var pages = template.Must(template.New("pages").Parse(`
{{define "login"}}<!DOCTYPE html>
<html><head><title>Sign in - Value Australia</title></head>
<body>
<main class="login">
<h1>Value Australia</h1>
<p>Sign in to continue.</p>
<a class="login-button" data-testid="login-button" href="/auth/start">Log In to Value Australia</a>
</main>
</body></html>{{end}}

{{define "consent"}}<!DOCTYPE html>
<html><head><title>Authorize Value Australia</title></head>
<body>
<main class="consent">
<h1>Value Australia wants to access your account</h1>
<p>Signing in as {{.Email}}</p>
<form method="POST" action="/oauth/authorize">
<input type="hidden" name="state" value="{{.State}}">
<button type="submit" class="oauth-continue">Continue</button>
</form>
</main>
</body></html>{{end}}

{{define "home"}}<!DOCTYPE html>
<html><head><title>Value Australia</title>
<script>window.Vue = {version: "3.4.0"}; window.Pinia = {};</script>
</head>
<body>
<div id="app" data-v-app="">
<nav class="navbar" data-v-7ba5bd90="">
<span class="brand" data-v-7ba5bd90="">Value Australia</span>
<div class="user-avatar" data-testid="user-avatar" title="{{.Email}}" data-v-7ba5bd90="">{{.Initials}}</div>
</nav>
<main data-v-7ba5bd90="">
<h1>Welcome back, {{.Name}}</h1>
</main>
</div>
</body></html>{{end}}
`))

func (f *Fixture) appRoutes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", f.handleHome)
	mux.HandleFunc("GET /login", f.handleLogin)
	mux.HandleFunc("GET /auth/start", f.handleStart)
	mux.HandleFunc("GET /auth/callback", f.handleCallback)
	return mux
}

func (f *Fixture) consentRoutes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /oauth/authorize", f.handleConsentPage)
	mux.HandleFunc("POST /oauth/authorize", f.handleConsent)
	return mux
}

func (f *Fixture) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pages.ExecuteTemplate(w, name, data); err != nil {
		obs.From(r.Context()).Error("render_failed", "page", name, "error", err)
	}
}

func (f *Fixture) handleHome(w http.ResponseWriter, r *http.Request) {
	u, ok := f.sessionUser(r)
	if !ok {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}
	f.render(w, r, "home", struct {
		User
		Initials string
	}{u, Initials(u.Name)})
}

func (f *Fixture) handleLogin(w http.ResponseWriter, r *http.Request) {
	f.render(w, r, "login", nil)
}

// handleStart sets the state cookie and sends the browser to the consent origin.
func (f *Fixture) handleStart(w http.ResponseWriter, r *http.Request) {
	state := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int((10 * time.Minute).Seconds()),
	})
	http.Redirect(w, r, urlutil.BuildAbsolute(f.ConsentURL, "/oauth/authorize?state="+url.QueryEscape(state)), http.StatusFound)
}

func (f *Fixture) handleConsentPage(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	if state == "" {
		http.Error(w, "Missing state parameter", http.StatusBadRequest)
		return
	}
	f.render(w, r, "consent", struct {
		Email string
		State string
	}{f.user.Email, state})
}

// handleConsent queues the user with the issuer and continues to its
// authorize endpoint, which redirects back to the app's callback.
func (f *Fixture) handleConsent(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form", http.StatusBadRequest)
		return
	}
	state := r.FormValue("state")
	if state == "" {
		http.Error(w, "Missing state parameter", http.StatusBadRequest)
		return
	}
	f.issuer.QueueUser(&mockoidc.MockUser{
		Subject:           "fixture-" + f.user.Email,
		Email:             f.user.Email,
		EmailVerified:     true,
		PreferredUsername: f.user.Name,
	})
	http.Redirect(w, r, f.oauth.AuthCodeURL(state), http.StatusFound)
}

func (f *Fixture) handleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := obs.From(ctx).With("pkg", "fixture")

	stateC, err := r.Cookie(stateCookie)
	if err != nil || stateC.Value == "" || stateC.Value != r.URL.Query().Get("state") {
		logger.Warn("callback_state_mismatch")
		http.Error(w, "Invalid state", http.StatusBadRequest)
		return
	}
	http.SetCookie(w, &http.Cookie{Name: stateCookie, Path: "/", MaxAge: -1})

	token, err := f.oauth.Exchange(ctx, r.URL.Query().Get("code"))
	if err != nil {
		logger.Warn("code_exchange_failed", "error", err)
		http.Error(w, "Code exchange failed", http.StatusBadGateway)
		return
	}
	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		http.Error(w, "Missing id_token", http.StatusBadGateway)
		return
	}
	idToken, err := f.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		logger.Warn("id_token_invalid", "error", err)
		http.Error(w, "Invalid id_token", http.StatusBadGateway)
		return
	}
	var claims struct {
		Email             string `json:"email"`
		PreferredUsername string `json:"preferred_username"`
	}
	if err := idToken.Claims(&claims); err != nil {
		http.Error(w, "Invalid claims", http.StatusBadGateway)
		return
	}

	id := f.newSession(User{Name: claims.PreferredUsername, Email: claims.Email})
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	logger.Info("signed_in", "email", claims.Email)
	http.Redirect(w, r, "/", http.StatusFound)
}
