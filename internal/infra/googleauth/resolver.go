// Package googleauth resolves the Google credential used to publish
// documents.
//
// Resolution order:
//  1. the cached delegated-user token file, used as is while valid
//  2. the same token refreshed through its refresh token, written back to disk
//  3. the service-account JSON blob from the environment
//
// A failure in steps 1-2 is logged and resolution falls through to step 3.
package googleauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"kairos/internal/domain/entity"
	"kairos/internal/observability/logging"
	"kairos/internal/observability/metrics"
	"kairos/internal/observability/tracing"
)

// Scopes requested for both credential kinds.
var Scopes = []string{
	"https://www.googleapis.com/auth/drive",
	"https://www.googleapis.com/auth/documents",
}

// Source tells which method produced a credential.
type Source string

const (
	SourceDelegated      Source = "delegated"
	SourceServiceAccount Source = "service_account"
)

// Credential is an authenticated handle for the Docs and Drive APIs. It is
// owned by one cycle.
type Credential struct {
	Source      Source
	TokenSource oauth2.TokenSource
}

// HTTPClient returns a traced client that authorizes every request with the
// credential.
func (c *Credential) HTTPClient() *http.Client {
	return &http.Client{
		Transport: &oauth2.Transport{
			Source: c.TokenSource,
			Base:   tracing.NewTransport(nil),
		},
	}
}

// Config contains the inputs for credential resolution.
type Config struct {
	// TokenFile is the cached delegated token; a missing file is not an error.
	TokenFile string

	// OAuthClientJSON is the OAuth client ("installed" or "web") used to
	// refresh the delegated token. Optional when the token file carries its
	// own client_id/client_secret.
	OAuthClientJSON string

	// ServiceAccountJSON is the service identity blob.
	ServiceAccountJSON string
}

// Resolver resolves a fresh Credential for every call.
type Resolver struct {
	config Config
	now    func() time.Time
}

// NewResolver creates a Resolver.
func NewResolver(cfg Config) *Resolver {
	return &Resolver{config: cfg, now: time.Now}
}

var errNoServiceAccount = errors.New("no service account configured")

// Resolve returns a credential or an *entity.AuthError when no method works.
func (r *Resolver) Resolve(ctx context.Context) (*Credential, error) {
	logger := logging.FromContext(ctx)

	cred, delegatedErr := r.resolveDelegated(ctx)
	if delegatedErr == nil && cred != nil {
		metrics.RecordCredentialResolution(string(SourceDelegated))
		return cred, nil
	}
	if delegatedErr != nil {
		logger.WarnContext(ctx, "Delegated credential unavailable, falling back to service account",
			slog.String("token_file", r.config.TokenFile),
			slog.String("error", logging.SanitizeError(delegatedErr)))
	}

	cred, err := r.resolveServiceAccount(ctx)
	if err != nil {
		metrics.RecordCredentialResolution("failed")
		return nil, &entity.AuthError{Op: "resolve credential", Err: errors.Join(err, delegatedErr)}
	}

	metrics.RecordCredentialResolution(string(SourceServiceAccount))
	logger.InfoContext(ctx, "Using service account credential")
	return cred, nil
}

// resolveDelegated returns (nil, nil) when there is no token file.
func (r *Resolver) resolveDelegated(ctx context.Context) (*Credential, error) {
	if r.config.TokenFile == "" {
		return nil, nil
	}

	stored, err := readTokenFile(r.config.TokenFile)
	if errors.Is(err, os.ErrNotExist) {
		logging.FromContext(ctx).DebugContext(ctx, "No cached token file",
			slog.String("token_file", r.config.TokenFile))
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	tok := stored.oauthToken()
	oauthCfg, cfgErr := r.oauthConfig(stored)

	if r.valid(tok) {
		logging.FromContext(ctx).InfoContext(ctx, "Using cached delegated credential")
		ts := oauth2.StaticTokenSource(tok)
		if cfgErr == nil {
			ts = oauthCfg.TokenSource(ctx, tok)
		}
		return &Credential{Source: SourceDelegated, TokenSource: ts}, nil
	}

	if tok.RefreshToken == "" {
		return nil, errors.New("cached token expired and has no refresh token")
	}
	if cfgErr != nil {
		return nil, fmt.Errorf("cached token expired: %w", cfgErr)
	}

	// Force a refresh regardless of the clock skew oauth2 allows for.
	expired := *tok
	expired.AccessToken = ""
	refreshed, err := oauthCfg.TokenSource(ctx, &expired).Token()
	if err != nil {
		return nil, fmt.Errorf("refresh cached token: %w", err)
	}

	stored.update(refreshed)
	if err := writeTokenFile(r.config.TokenFile, stored); err != nil {
		// The refreshed token is still usable for this cycle.
		logging.FromContext(ctx).WarnContext(ctx, "Failed to persist refreshed token",
			slog.String("token_file", r.config.TokenFile),
			slog.Any("error", err))
	}

	logging.FromContext(ctx).InfoContext(ctx, "Refreshed delegated credential",
		slog.Time("expiry", refreshed.Expiry))
	return &Credential{Source: SourceDelegated, TokenSource: oauthCfg.TokenSource(ctx, refreshed)}, nil
}

func (r *Resolver) valid(tok *oauth2.Token) bool {
	if tok.AccessToken == "" {
		return false
	}
	return tok.Expiry.IsZero() || r.now().Add(time.Minute).Before(tok.Expiry)
}

// oauthConfig builds the refresh configuration from OAuthClientJSON, or from
// the client fields stored alongside the token.
func (r *Resolver) oauthConfig(stored *tokenFile) (*oauth2.Config, error) {
	if r.config.OAuthClientJSON != "" {
		cfg, err := google.ConfigFromJSON([]byte(r.config.OAuthClientJSON), Scopes...)
		if err != nil {
			return nil, fmt.Errorf("parse oauth client json: %w", err)
		}
		return cfg, nil
	}
	if stored.ClientID == "" {
		return nil, errors.New("no oauth client configured for refresh")
	}
	endpoint := google.Endpoint
	if stored.TokenURI != "" {
		endpoint.TokenURL = stored.TokenURI
	}
	return &oauth2.Config{
		ClientID:     stored.ClientID,
		ClientSecret: stored.ClientSecret,
		Endpoint:     endpoint,
		Scopes:       Scopes,
	}, nil
}

func (r *Resolver) resolveServiceAccount(ctx context.Context) (*Credential, error) {
	blob := strings.TrimSpace(r.config.ServiceAccountJSON)
	if blob == "" {
		return nil, errNoServiceAccount
	}
	jwtCfg, err := google.JWTConfigFromJSON([]byte(blob), Scopes...)
	if err != nil {
		return nil, fmt.Errorf("parse service account json: %w", err)
	}
	return &Credential{
		Source:      SourceServiceAccount,
		TokenSource: oauth2.ReuseTokenSource(nil, jwtCfg.TokenSource(ctx)),
	}, nil
}

// tokenFile is the on-disk token. It accepts both oauth2.Token JSON and the
// authorized-user files written by Google's Python client ("token" instead
// of "access_token", with the OAuth client embedded).
type tokenFile struct {
	AccessToken  string     `json:"access_token,omitempty"`
	Token        string     `json:"token,omitempty"`
	TokenType    string     `json:"token_type,omitempty"`
	RefreshToken string     `json:"refresh_token,omitempty"`
	Expiry       *time.Time `json:"expiry,omitempty"`
	ClientID     string     `json:"client_id,omitempty"`
	ClientSecret string     `json:"client_secret,omitempty"`
	TokenURI     string     `json:"token_uri,omitempty"`
	Scopes       []string   `json:"scopes,omitempty"`
}

func (f *tokenFile) oauthToken() *oauth2.Token {
	tok := &oauth2.Token{
		AccessToken:  f.AccessToken,
		TokenType:    f.TokenType,
		RefreshToken: f.RefreshToken,
	}
	if tok.AccessToken == "" {
		tok.AccessToken = f.Token
	}
	if f.Expiry != nil {
		tok.Expiry = *f.Expiry
	}
	return tok
}

func (f *tokenFile) update(tok *oauth2.Token) {
	if f.Token != "" {
		f.Token = tok.AccessToken
	} else {
		f.AccessToken = tok.AccessToken
	}
	if tok.TokenType != "" {
		f.TokenType = tok.TokenType
	}
	if tok.RefreshToken != "" {
		f.RefreshToken = tok.RefreshToken
	}
	expiry := tok.Expiry.UTC()
	f.Expiry = &expiry
}

func readTokenFile(path string) (*tokenFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f tokenFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse token file: %w", err)
	}
	return &f, nil
}

// writeTokenFile replaces path atomically with mode 0600.
func writeTokenFile(path string, f *tokenFile) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal token: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".token-*.json")
	if err != nil {
		return fmt.Errorf("create temp token file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod temp token file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp token file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp token file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace token file: %w", err)
	}
	return nil
}
