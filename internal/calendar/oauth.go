package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"
)

// OAuth2Credentials структура для OAuth2 credentials
type OAuth2Credentials struct {
	ClientID     string   `json:"client_id"`
	ClientSecret string   `json:"client_secret"`
	RedirectURIs []string `json:"redirect_uris"`
	AuthURI      string   `json:"auth_uri"`
	TokenURI     string   `json:"token_uri"`
}

// GoogleCredentialsFile структура для файла credentials.json из Google Cloud Console
type GoogleCredentialsFile struct {
	Installed *OAuth2Credentials `json:"installed,omitempty"`
	Web       *OAuth2Credentials `json:"web,omitempty"`
}

var ErrNoToken = errors.New("no calendar token: run calendar-auth-helper or set GOOGLE_CALENDAR_REFRESH_TOKEN")

// ParseCredentials понимает и прямой формат, и файл из Google Cloud Console
func ParseCredentials(data []byte) (*OAuth2Credentials, error) {
	var direct OAuth2Credentials
	if err := json.Unmarshal(data, &direct); err == nil {
		if direct.ClientID != "" && direct.ClientSecret != "" {
			return &direct, nil
		}
	}

	var file GoogleCredentialsFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse credentials as Google format: %w", err)
	}
	if file.Installed != nil {
		return file.Installed, nil
	}
	if file.Web != nil {
		return file.Web, nil
	}
	return nil, fmt.Errorf("no valid credentials found in JSON - expected 'installed' or 'web' section")
}

// NewOAuthConfig создает OAuth2 config с доступом на запись событий
func NewOAuthConfig(creds *OAuth2Credentials) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		RedirectURL:  "urn:ietf:wg:oauth:2.0:oob",
		Scopes:       []string{gcal.CalendarEventsScope},
		Endpoint:     google.Endpoint,
	}
}

// LoadToken загружает токен из файла
func LoadToken(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	token := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(token); err != nil {
		return nil, err
	}
	return token, nil
}

// SaveToken сохраняет токен в файл
func SaveToken(path string, token *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(token)
}

// tokenFor returns the cached token, or one built from refreshToken. The
// oauth2 token source refreshes it on demand.
func tokenFor(path, refreshToken string) (*oauth2.Token, error) {
	token, err := LoadToken(path)
	if err == nil && (token.Valid() || token.RefreshToken != "") {
		return token, nil
	}
	if refreshToken != "" {
		log.Printf("calendar: using refresh token from environment")
		return &oauth2.Token{RefreshToken: refreshToken}, nil
	}
	return nil, ErrNoToken
}

// savingSource persists every new token it hands out.
type savingSource struct {
	src  oauth2.TokenSource
	path string
	last string
}

func (s *savingSource) Token() (*oauth2.Token, error) {
	t, err := s.src.Token()
	if err != nil {
		return nil, err
	}
	if t.AccessToken != s.last {
		s.last = t.AccessToken
		if err := SaveToken(s.path, t); err != nil {
			log.Printf("calendar: failed to save refreshed token: %v", err)
		}
	}
	return t, nil
}

func newTokenSource(ctx context.Context, cfg *oauth2.Config, tokenPath, refreshToken string) (oauth2.TokenSource, error) {
	token, err := tokenFor(tokenPath, refreshToken)
	if err != nil {
		return nil, err
	}
	return oauth2.ReuseTokenSource(token, &savingSource{src: cfg.TokenSource(ctx, token), path: tokenPath, last: token.AccessToken}), nil
}
