package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/Maarioo25/HiFybe/internal/core/domain"
	"github.com/Maarioo25/HiFybe/internal/core/port"
)

const defaultGoogleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

// ErrProfileIncomplete is returned when the provider omits the subject or email.
var ErrProfileIncomplete = errors.New("oauth: provider profile incomplete")

// GoogleConfig configures the Google provider. AuthURL, TokenURL and
// UserInfoURL override Google's endpoints for tests.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	AuthURL      string
	TokenURL     string
	UserInfoURL  string
	HTTPClient   *http.Client
}

// GoogleProvider implements port.ExternalIdentityProvider on top of x/oauth2.
type GoogleProvider struct {
	oauth       *oauth2.Config
	userInfoURL string
	httpClient  *http.Client
}

var _ port.ExternalIdentityProvider = (*GoogleProvider)(nil)

// NewGoogleProvider builds a provider requesting the openid, email and profile scopes.
func NewGoogleProvider(cfg GoogleConfig) *GoogleProvider {
	endpoint := google.Endpoint
	if cfg.AuthURL != "" {
		endpoint.AuthURL = cfg.AuthURL
	}
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
	}

	userInfoURL := cfg.UserInfoURL
	if userInfoURL == "" {
		userInfoURL = defaultGoogleUserInfoURL
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	return &GoogleProvider{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     endpoint,
			Scopes:       []string{"openid", "email", "profile"},
		},
		userInfoURL: userInfoURL,
		httpClient:  client,
	}
}

// AuthCodeURL returns the consent screen URL carrying state.
func (p *GoogleProvider) AuthCodeURL(state string) string {
	return p.oauth.AuthCodeURL(state, oauth2.SetAuthURLParam("prompt", "select_account"))
}

type googleUserInfo struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
	Picture       string `json:"picture"`
}

// ExchangeCodeForProfile trades the authorization code for a token and
// fetches the OpenID userinfo document.
func (p *GoogleProvider) ExchangeCodeForProfile(ctx context.Context, code string) (domain.ExternalProfile, error) {
	if strings.TrimSpace(code) == "" {
		return domain.ExternalProfile{}, errors.New("oauth: authorization code required")
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)

	token, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		return domain.ExternalProfile{}, fmt.Errorf("exchange code: %w", err)
	}

	resp, err := p.oauth.Client(ctx, token).Get(p.userInfoURL)
	if err != nil {
		return domain.ExternalProfile{}, fmt.Errorf("fetch userinfo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.ExternalProfile{}, fmt.Errorf("fetch userinfo: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var info googleUserInfo
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&info); err != nil {
		return domain.ExternalProfile{}, fmt.Errorf("decode userinfo: %w", err)
	}

	if info.Sub == "" || info.Email == "" {
		return domain.ExternalProfile{}, ErrProfileIncomplete
	}

	return domain.ExternalProfile{
		Provider:      domain.AuthProviderGoogle,
		SubjectID:     info.Sub,
		Email:         domain.NormalizeEmail(info.Email),
		EmailVerified: info.EmailVerified,
		Name:          info.Name,
		GivenName:     info.GivenName,
		FamilyName:    info.FamilyName,
		PictureURL:    info.Picture,
	}, nil
}
