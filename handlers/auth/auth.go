package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"sketchvault/config"
	"sketchvault/core"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

// AppClaims represents the custom claims for the session JWT.
type AppClaims struct {
	jwt.RegisteredClaims
	Login     string `json:"login"`
	Email     string `json:"email,omitempty"`
	AvatarURL string `json:"avatarUrl"`
	Name      string `json:"name"`
}

// oidcClaims represents the claims read from an OIDC ID token.
type oidcClaims struct {
	Email             string `json:"email"`
	Name              string `json:"name"`
	PreferredUsername string `json:"preferred_username"`
	Picture           string `json:"picture"`
	Sub               string `json:"sub"`
}

// Service issues and validates session tokens. One authentication provider
// (OIDC preferred, GitHub otherwise) is selected at construction time from
// configuration; the service is injected into handlers and middleware rather
// than living in package state.
type Service struct {
	jwtSecret []byte

	githubOauthConfig *oauth2.Config
	oidcOauthConfig   *oauth2.Config
	verifier          *oidc.IDTokenVerifier

	loginHandler    http.HandlerFunc
	callbackHandler http.HandlerFunc
}

// NewService configures authentication from cfg.
func NewService(cfg *config.Config) *Service {
	s := &Service{jwtSecret: []byte(cfg.JWTSecret)}
	if len(s.jwtSecret) == 0 {
		logrus.Warn("JWT_SECRET is not set. Authentication will not work.")
	}

	switch {
	case cfg.OIDCIssuerURL != "" && cfg.OIDCClientID != "":
		logrus.Info("Initializing OIDC authentication provider.")
		s.initOIDC(cfg)
		s.loginHandler = s.handleOIDCLogin
		s.callbackHandler = s.handleOIDCCallback
	case cfg.GitHubClientID != "" && cfg.GitHubClientSecret != "":
		logrus.Info("Initializing GitHub authentication provider.")
		s.githubOauthConfig = &oauth2.Config{
			ClientID:     cfg.GitHubClientID,
			ClientSecret: cfg.GitHubClientSecret,
			RedirectURL:  cfg.GitHubRedirectURL,
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     github.Endpoint,
		}
		s.loginHandler = s.handleGitHubLogin
		s.callbackHandler = s.handleGitHubCallback
	default:
		logrus.Warn("No authentication provider configured.")
		unconfigured := func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "Authentication not configured", http.StatusInternalServerError)
		}
		s.loginHandler = unconfigured
		s.callbackHandler = unconfigured
	}
	return s
}

func (s *Service) initOIDC(cfg *config.Config) {
	provider, err := oidc.NewProvider(context.Background(), cfg.OIDCIssuerURL)
	if err != nil {
		logrus.Errorf("Failed to create OIDC provider: %s", err.Error())
		return
	}

	s.oidcOauthConfig = &oauth2.Config{
		ClientID:     cfg.OIDCClientID,
		ClientSecret: cfg.OIDCClientSecret,
		RedirectURL:  cfg.OIDCRedirectURL,
		Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
		Endpoint:     provider.Endpoint(),
	}
	s.verifier = provider.Verifier(&oidc.Config{ClientID: cfg.OIDCClientID})
}

// HandleLogin starts the configured provider's login flow.
func (s *Service) HandleLogin(w http.ResponseWriter, r *http.Request) {
	s.loginHandler(w, r)
}

// HandleCallback completes the configured provider's login flow.
func (s *Service) HandleCallback(w http.ResponseWriter, r *http.Request) {
	s.callbackHandler(w, r)
}

func setStateCookie(w http.ResponseWriter, r *http.Request, name string) (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	state := hex.EncodeToString(b)
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    state,
		Path:     "/",
		Expires:  time.Now().Add(10 * time.Minute),
		HttpOnly: true,
		Secure:   r.Header.Get("X-Forwarded-Proto") == "https",
		SameSite: http.SameSiteLaxMode,
	})
	return state, nil
}

func (s *Service) handleGitHubLogin(w http.ResponseWriter, r *http.Request) {
	state, err := setStateCookie(w, r, "oauthstate")
	if err != nil {
		http.Error(w, "Failed to generate login state", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, s.githubOauthConfig.AuthCodeURL(state), http.StatusTemporaryRedirect)
}

func (s *Service) handleGitHubCallback(w http.ResponseWriter, r *http.Request) {
	token, err := s.githubOauthConfig.Exchange(r.Context(), r.FormValue("code"))
	if err != nil {
		logrus.Errorf("failed to exchange token: %s", err.Error())
		http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
		return
	}

	client := s.githubOauthConfig.Client(r.Context(), token)
	resp, err := client.Get("https://api.github.com/user")
	if err != nil {
		logrus.Errorf("failed to get user from github: %s", err.Error())
		http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
		return
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		logrus.Errorf("failed to read github response body: %s", err.Error())
		http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
		return
	}

	var githubUser struct {
		ID        int64  `json:"id"`
		Login     string `json:"login"`
		AvatarURL string `json:"avatar_url"`
		Name      string `json:"name"`
	}
	if err := json.Unmarshal(body, &githubUser); err != nil {
		logrus.Errorf("failed to unmarshal github user: %s", err.Error())
		http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
		return
	}

	user := &core.User{
		Subject:   fmt.Sprintf("github:%d", githubUser.ID),
		Login:     githubUser.Login,
		AvatarURL: githubUser.AvatarURL,
		Name:      githubUser.Name,
	}
	s.finishLogin(w, r, user)
}

func (s *Service) handleOIDCLogin(w http.ResponseWriter, r *http.Request) {
	if s.oidcOauthConfig == nil {
		http.Error(w, "OIDC is not configured", http.StatusInternalServerError)
		return
	}
	state, err := setStateCookie(w, r, "oidc_state")
	if err != nil {
		http.Error(w, "Failed to generate login state", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, s.oidcOauthConfig.AuthCodeURL(state, oauth2.AccessTypeOffline), http.StatusTemporaryRedirect)
}

func (s *Service) handleOIDCCallback(w http.ResponseWriter, r *http.Request) {
	if s.oidcOauthConfig == nil {
		http.Error(w, "OIDC is not configured", http.StatusInternalServerError)
		return
	}

	code := r.FormValue("code")
	if code == "" {
		logrus.Error("no code in callback")
		http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
		return
	}

	token, err := s.oidcOauthConfig.Exchange(r.Context(), code)
	if err != nil {
		logrus.Errorf("failed to exchange token: %s", err.Error())
		http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
		return
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		logrus.Error("no id_token in token response")
		http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
		return
	}

	idToken, err := s.verifier.Verify(r.Context(), rawIDToken)
	if err != nil {
		logrus.Errorf("failed to verify ID token: %s", err.Error())
		http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
		return
	}

	var claims oidcClaims
	if err := idToken.Claims(&claims); err != nil {
		logrus.Errorf("failed to extract claims from ID token: %s", err.Error())
		http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
		return
	}

	user := &core.User{
		Subject:   claims.Sub,
		Login:     claims.PreferredUsername,
		Email:     claims.Email,
		AvatarURL: claims.Picture,
		Name:      claims.Name,
	}
	if user.Login == "" && user.Email != "" {
		user.Login = user.Email
	}
	s.finishLogin(w, r, user)
}

func (s *Service) finishLogin(w http.ResponseWriter, r *http.Request, user *core.User) {
	jwtToken, err := s.CreateJWT(user)
	if err != nil {
		logrus.Errorf("failed to create JWT: %s", err.Error())
		http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
		return
	}
	http.Redirect(w, r, fmt.Sprintf("/?token=%s", jwtToken), http.StatusTemporaryRedirect)
}

// CreateJWT signs a one-week session token for user.
func (s *Service) CreateJWT(user *core.User) (string, error) {
	claims := AppClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour * 24 * 7)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		Login:     user.Login,
		Email:     user.Email,
		AvatarURL: user.AvatarURL,
		Name:      user.Name,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

// ParseJWT validates a session token and returns its claims.
func (s *Service) ParseJWT(tokenString string) (*AppClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AppClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(*AppClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, fmt.Errorf("invalid token")
}
