package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/no10ds/rapid-sdk-go/rapiderr"
)

// Authenticator exchanges client credentials for bearer tokens.
//
// Tokens are not cached: every FetchToken call performs a fresh exchange
// against {url}/oauth2/token. An Authenticator is safe for sequential reuse.
type Authenticator struct {
	baseURL    string
	oauth       clientcredentials.Config
	httpClient  *http.Client
	tokenClient *http.Client
	logger     *slog.Logger
}

// Option configures an Authenticator.
type Option func(*Authenticator)

// WithHTTPClient sets the client used for token requests.
func WithHTTPClient(c *http.Client) Option {
	return func(a *Authenticator) {
		if c != nil {
			a.httpClient = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Authenticator) {
		if l != nil {
			a.logger = l
		}
	}
}

// NewAuthenticator validates cfg and performs one token exchange to confirm
// the credentials are accepted.
func NewAuthenticator(ctx context.Context, cfg Config, opts ...Option) (*Authenticator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	baseURL := strings.TrimRight(cfg.URL, "/")

	a := &Authenticator{
		baseURL: baseURL,
		oauth: clientcredentials.Config{
			ClientID:       cfg.ClientID,
			ClientSecret:   cfg.ClientSecret,
			TokenURL:       baseURL + "/oauth2/token",
			AuthStyle:      oauth2.AuthStyleInHeader,
			EndpointParams: url.Values{"client_id": {cfg.ClientID}},
		},
		httpClient: &http.Client{Timeout: DefaultTimeout},
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		opt(a)
	}

	a.logger = a.logger.With("component", "auth")
	a.tokenClient = strictTokenClient(a.httpClient)

	if _, err := a.FetchToken(ctx); err != nil {
		return nil, err
	}

	a.logger.Debug("credentials validated", "url", baseURL)

	return a, nil
}

// URL returns the base URL of the rAPId instance.
func (a *Authenticator) URL() string {
	return a.baseURL
}

// HTTPClient returns the client used for outbound requests.
func (a *Authenticator) HTTPClient() *http.Client {
	return a.httpClient
}

// FetchToken requests a new access token.
func (a *Authenticator) FetchToken(ctx context.Context) (string, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, a.tokenClient)

	tok, err := a.oauth.Token(ctx)
	if err != nil {
		authErr := &rapiderr.AuthenticationError{URL: a.baseURL, Err: err}

		var (
			retrieveErr *oauth2.RetrieveError
			statusErr   *tokenStatusError
		)
		switch {
		case errors.As(err, &retrieveErr) && retrieveErr.Response != nil:
			authErr.StatusCode = retrieveErr.Response.StatusCode
		case errors.As(err, &statusErr):
			authErr.StatusCode = statusErr.StatusCode
		}

		return "", authErr
	}

	if tok.AccessToken == "" {
		return "", &rapiderr.AuthenticationError{URL: a.baseURL, Err: fmt.Errorf("token response missing access_token")}
	}

	return tok.AccessToken, nil
}

// Header returns the Authorization header value for a fresh token.
func (a *Authenticator) Header(ctx context.Context) (string, error) {
	tok, err := a.FetchToken(ctx)
	if err != nil {
		return "", err
	}

	return "Bearer " + tok, nil
}

// tokenStatusError reports a token response with a 2xx status other than 200.
type tokenStatusError struct {
	StatusCode int
}

func (e *tokenStatusError) Error() string {
	return fmt.Sprintf("token endpoint returned status %d, want 200", e.StatusCode)
}

// strictStatusTransport rejects successful token responses that are not 200.
// Non-2xx responses pass through so oauth2 can report them with their body.
type strictStatusTransport struct {
	base http.RoundTripper
}

func (t strictStatusTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode/100 == 2 && resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, &tokenStatusError{StatusCode: resp.StatusCode}
	}

	return resp, nil
}

// strictTokenClient copies c with its transport wrapped by strictStatusTransport.
func strictTokenClient(c *http.Client) *http.Client {
	strict := *c
	base := strict.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	strict.Transport = strictStatusTransport{base: base}

	return &strict
}
