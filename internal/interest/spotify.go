package interest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultSpotifyTokenURL = "https://accounts.spotify.com/api/token"
	DefaultSpotifyAPIURL   = "https://api.spotify.com/v1"

	spotifyPageLimit = 50
	spotifyMaxPages  = 200
)

// SpotifyProvider lists the artists a Spotify account follows, using a long-lived
// refresh token.
type SpotifyProvider struct {
	ClientID     string
	ClientSecret string
	RefreshToken string

	TokenURL   string
	APIURL     string
	HTTPClient *http.Client
}

func (p *SpotifyProvider) Name() string {
	return "spotify"
}

func (p *SpotifyProvider) Entries(ctx context.Context) ([]Entry, error) {
	if p == nil {
		return nil, fmt.Errorf("spotify provider is nil")
	}

	token, err := p.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	apiURL := strings.TrimRight(strings.TrimSpace(p.APIURL), "/")
	if apiURL == "" {
		apiURL = DefaultSpotifyAPIURL
	}
	next := fmt.Sprintf("%s/me/following?type=artist&limit=%d", apiURL, spotifyPageLimit)

	var entries []Entry
	for page := 0; next != ""; page++ {
		if page >= spotifyMaxPages {
			return nil, fmt.Errorf("spotify pagination exceeded %d pages", spotifyMaxPages)
		}

		var payload followedArtistsResponse
		if err := p.getJSON(ctx, next, token, &payload); err != nil {
			return nil, err
		}
		for _, artist := range payload.Artists.Items {
			name := strings.TrimSpace(artist.Name)
			if name == "" {
				continue
			}
			entries = append(entries, Entry{Name: name, URL: strings.TrimSpace(artist.ExternalURLs.Spotify)})
		}
		next = strings.TrimSpace(payload.Artists.Next)
	}
	return entries, nil
}

func (p *SpotifyProvider) accessToken(ctx context.Context) (string, error) {
	if strings.TrimSpace(p.ClientID) == "" || strings.TrimSpace(p.ClientSecret) == "" {
		return "", fmt.Errorf("spotify client credentials are required")
	}
	if strings.TrimSpace(p.RefreshToken) == "" {
		return "", fmt.Errorf("spotify refresh token is required")
	}

	tokenURL := strings.TrimSpace(p.TokenURL)
	if tokenURL == "" {
		tokenURL = DefaultSpotifyTokenURL
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", strings.TrimSpace(p.RefreshToken))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build spotify token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(strings.TrimSpace(p.ClientID), strings.TrimSpace(p.ClientSecret))

	resp, err := p.client().Do(req)
	if err != nil {
		return "", fmt.Errorf("send spotify token request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read spotify token response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("spotify token endpoint status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var token tokenResponse
	if err := json.Unmarshal(body, &token); err != nil {
		return "", fmt.Errorf("decode spotify token response: %w", err)
	}
	if strings.TrimSpace(token.AccessToken) == "" {
		return "", fmt.Errorf("spotify token response missing access_token")
	}
	return token.AccessToken, nil
}

func (p *SpotifyProvider) getJSON(ctx context.Context, endpoint, token string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build spotify request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := p.client().Do(req)
	if err != nil {
		return fmt.Errorf("send spotify request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read spotify response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("spotify api status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode spotify response: %w", err)
	}
	return nil
}

func (p *SpotifyProvider) client() *http.Client {
	if p.HTTPClient != nil {
		return p.HTTPClient
	}
	return &http.Client{Timeout: 20 * time.Second}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

type followedArtistsResponse struct {
	Artists struct {
		Items []struct {
			Name         string `json:"name"`
			ExternalURLs struct {
				Spotify string `json:"spotify"`
			} `json:"external_urls"`
		} `json:"items"`
		Next string `json:"next"`
	} `json:"artists"`
}
