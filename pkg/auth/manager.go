package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/Sternrassler/realty-gateway/pkg/client"
	"github.com/Sternrassler/realty-gateway/pkg/logging"
)

// ErrAuthExpired is returned when no refresh strategy produced a token.
var ErrAuthExpired = errors.New("auth token expired and could not be refreshed")

var tokenRefreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "realty_token_refresh_total",
	Help: "Token refresh attempts by strategy and result",
}, []string{"strategy", "result"})

const (
	// DefaultRefreshMargin is how long before expiry a token is considered stale.
	DefaultRefreshMargin = 60 * time.Second

	// DefaultTokenTTL applies when neither the body nor the token announces an expiry.
	DefaultTokenTTL = 300 * time.Second
)

// Config holds SSO endpoints and credentials. Strategies whose inputs are
// empty are skipped.
type Config struct {
	// LoginURL accepts the phone/password form.
	LoginURL string
	AppID    string
	Phone    string
	Password string
	// Origin is sent as Origin and Referer on the form login.
	Origin string

	// TokenURL accepts client_id/client_secret as GET query parameters.
	TokenURL string
	// ClientLoginURL accepts client_id/client_secret as a POST body.
	ClientLoginURL string
	ClientID       string
	ClientSecret   string

	RefreshMargin time.Duration
	DefaultTTL    time.Duration
	Timeout       time.Duration

	Logger *zerolog.Logger
}

// Doer executes one upstream request.
type Doer interface {
	Do(ctx context.Context, r client.Request) (*client.Response, error)
}

// Manager hands out a valid bearer token, refreshing it on demand.
type Manager struct {
	cfg       Config
	transport Doer
	store     TokenStore
	group     singleflight.Group
	logger    zerolog.Logger
	now       func() time.Time
}

// NewManager creates a token manager. A nil store uses memory.
func NewManager(cfg Config, transport Doer, store TokenStore) *Manager {
	if cfg.RefreshMargin <= 0 {
		cfg.RefreshMargin = DefaultRefreshMargin
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = DefaultTokenTTL
	}
	if store == nil {
		store = NewMemoryTokenStore()
	}
	logger := logging.NewLogger("auth")
	if cfg.Logger != nil {
		logger = cfg.Logger.With().Str("component", "auth").Logger()
	}
	return &Manager{
		cfg:       cfg,
		transport: transport,
		store:     store,
		logger:    logger,
		now:       time.Now,
	}
}

// GetValidToken returns the cached token, or refreshes it when it is absent
// or within the refresh margin of expiry.
func (m *Manager) GetValidToken(ctx context.Context) (string, error) {
	if tok := m.cached(ctx); tok != nil {
		return tok.Value, nil
	}

	// The refresh runs detached so one caller giving up does not fail the others.
	ch := m.group.DoChan("refresh", func() (any, error) {
		return m.refresh(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (m *Manager) cached(ctx context.Context) *Token {
	tok, err := m.store.Load(ctx)
	if err != nil {
		m.logger.Warn().Err(err).Msg("Failed to load cached token")
		return nil
	}
	if tok.ValidAt(m.now(), m.cfg.RefreshMargin) {
		return tok
	}
	return nil
}

type strategy struct {
	name string
	run  func(ctx context.Context) (string, time.Duration, error)
}

func (m *Manager) strategies() []strategy {
	var out []strategy
	if m.cfg.LoginURL != "" && m.cfg.Phone != "" && m.cfg.Password != "" {
		out = append(out, strategy{name: "password", run: m.passwordLogin})
	}
	if m.cfg.ClientID != "" && m.cfg.ClientSecret != "" {
		if m.cfg.TokenURL != "" {
			out = append(out, strategy{name: "client_credentials_get", run: m.clientCredentialsGet})
		}
		if m.cfg.ClientLoginURL != "" {
			out = append(out, strategy{name: "client_credentials_post", run: m.clientCredentialsPost})
		}
	}
	return out
}

func (m *Manager) refresh(ctx context.Context) (string, error) {
	// Another flight may have finished between our check and this one starting.
	if tok := m.cached(ctx); tok != nil {
		return tok.Value, nil
	}

	var errs []error
	for _, s := range m.strategies() {
		value, expiresIn, err := s.run(ctx)
		if err != nil {
			tokenRefreshTotal.WithLabelValues(s.name, "failure").Inc()
			m.logger.Warn().Err(err).Str("strategy", s.name).Msg("Token refresh strategy failed")
			errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
			continue
		}

		tok := Token{Value: value, ExpiresAt: m.expiry(value, expiresIn)}
		if err := m.store.Save(ctx, tok); err != nil {
			m.logger.Warn().Err(err).Msg("Failed to store refreshed token")
		}
		tokenRefreshTotal.WithLabelValues(s.name, "success").Inc()
		m.logger.Info().
			Str("strategy", s.name).
			Time("expires_at", tok.ExpiresAt).
			Msg("Auth token refreshed")
		return value, nil
	}

	m.logger.Error().Int("strategies", len(errs)).Msg("All token refresh strategies failed")
	if len(errs) == 0 {
		return "", fmt.Errorf("%w: no credentials configured", ErrAuthExpired)
	}
	return "", fmt.Errorf("%w: %w", ErrAuthExpired, errors.Join(errs...))
}

func (m *Manager) expiry(token string, expiresIn time.Duration) time.Time {
	if expiresIn > 0 {
		return m.now().Add(expiresIn)
	}
	if exp, ok := jwtExpiry(token); ok {
		return exp
	}
	return m.now().Add(m.cfg.DefaultTTL)
}

func (m *Manager) passwordLogin(ctx context.Context) (string, time.Duration, error) {
	u, err := url.Parse(m.cfg.LoginURL)
	if err != nil {
		return "", 0, fmt.Errorf("parse login url: %w", err)
	}
	if m.cfg.AppID != "" {
		q := u.Query()
		q.Set("app_id", m.cfg.AppID)
		u.RawQuery = q.Encode()
	}

	form := url.Values{}
	form.Set("phone", NormalizePhone(m.cfg.Phone))
	form.Set("password", m.cfg.Password)
	form.Set("client", "web")

	header := http.Header{}
	header.Set("Content-Type", "application/x-www-form-urlencoded")
	if m.cfg.Origin != "" {
		header.Set("Origin", m.cfg.Origin)
		header.Set("Referer", m.cfg.Origin+"/")
	}

	resp, err := m.transport.Do(ctx, client.Request{
		Method:     http.MethodPost,
		URL:        u.String(),
		Header:     header,
		Body:       []byte(form.Encode()),
		Timeout:    m.cfg.Timeout,
		NoRedirect: true,
	})
	if err != nil {
		return "", 0, err
	}

	if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated {
		if tok, exp := tokenFromBody(resp.Body); tok != "" {
			return tok, exp, nil
		}
	}
	if resp.IsRedirect() {
		if tok := tokenFromLocation(resp.Header); tok != "" {
			return tok, 0, nil
		}
	}
	if tok := tokenFromCookies(resp.Header); tok != "" {
		return tok, 0, nil
	}
	return "", 0, client.StatusError(resp)
}

func (m *Manager) clientCredentialsGet(ctx context.Context) (string, time.Duration, error) {
	u, err := url.Parse(m.cfg.TokenURL)
	if err != nil {
		return "", 0, fmt.Errorf("parse token url: %w", err)
	}
	q := u.Query()
	q.Set("client_id", m.cfg.ClientID)
	q.Set("client_secret", m.cfg.ClientSecret)
	u.RawQuery = q.Encode()

	resp, err := m.transport.Do(ctx, client.Request{
		Method:  http.MethodGet,
		URL:     u.String(),
		Timeout: m.cfg.Timeout,
	})
	return bodyToken(resp, err)
}

func (m *Manager) clientCredentialsPost(ctx context.Context) (string, time.Duration, error) {
	form := url.Values{}
	form.Set("client_id", m.cfg.ClientID)
	form.Set("client_secret", m.cfg.ClientSecret)

	header := http.Header{}
	header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.transport.Do(ctx, client.Request{
		Method:  http.MethodPost,
		URL:     m.cfg.ClientLoginURL,
		Header:  header,
		Body:    []byte(form.Encode()),
		Timeout: m.cfg.Timeout,
	})
	return bodyToken(resp, err)
}

func bodyToken(resp *client.Response, err error) (string, time.Duration, error) {
	if err != nil {
		return "", 0, err
	}
	if !resp.IsSuccess() {
		return "", 0, client.StatusError(resp)
	}
	tok, exp := tokenFromBody(resp.Body)
	if tok == "" {
		return "", 0, fmt.Errorf("no token in response from %s", resp.URL)
	}
	return tok, exp, nil
}

// Invalidate drops the cached token so the next call refreshes it.
func (m *Manager) Invalidate(ctx context.Context) error {
	m.logger.Debug().Msg("Invalidating cached token")
	return m.store.Clear(ctx)
}

// Logout discards the token and any refresh result not yet collected.
func (m *Manager) Logout(ctx context.Context) error {
	m.group.Forget("refresh")
	if err := m.store.Clear(ctx); err != nil {
		return err
	}
	m.logger.Info().Msg("Auth token discarded")
	return nil
}
