// Package spotify is the external data source adapter. It fetches raw JSON
// from the streaming platform's public and client endpoints, rotating among
// credential identities, rate limiting requests and absorbing transient
// failures: ordinary not-found/timeout outcomes return nil, never an error.
package spotify

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/antonholmquist/jason"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"github.com/soundscout/soundscout-go/internal/conf"
	"github.com/soundscout/soundscout-go/internal/logging"
	"github.com/soundscout/soundscout-go/internal/tokenstore"
)

// Client fetches raw JSON from the streaming platform.
type Client struct {
	http     *resty.Client
	tokens   *tokenstore.Store
	settings *conf.StreamingSettings
	limiter  *rate.Limiter
	logger   *slog.Logger

	mu        sync.Mutex
	iterCount int
}

// New builds a client over the configured identities and base URLs.
func New(settings *conf.StreamingSettings, tokens *tokenstore.Store) *Client {
	httpClient := resty.New().
		SetTimeout(time.Duration(settings.ReadTimeout) * time.Second).
		SetHeader("Accept", "application/json")
	httpClient.GetClient().Transport = &http.Transport{
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		ResponseHeaderTimeout: time.Duration(settings.ReadTimeout) * time.Second,
		TLSHandshakeTimeout:   time.Duration(settings.ConnectTimeout) * time.Second,
	}

	return &Client{
		http:     httpClient,
		tokens:   tokens,
		settings: settings,
		limiter:  rate.NewLimiter(rate.Limit(settings.RequestsPerSecond), 1),
		logger:   logging.ForService("spotify"),
	}
}

// nextIdentity round-robins through the configured credential identities so
// request load is spread across them.
func (c *Client) nextIdentity() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.settings.Identities) == 0 {
		return ""
	}
	identity := c.settings.Identities[c.iterCount%len(c.settings.Identities)]
	c.iterCount++
	return identity.Name
}

// get performs one rate-limited GET. A 429 is retried once after a short
// sleep; connect/read timeouts and 5xx responses are logged and yield nil.
// Only programmer errors (no identities configured) return an error.
func (c *Client) get(ctx context.Context, url string, params map[string]string) (*jason.Object, error) {
	identity := c.nextIdentity()
	if identity == "" {
		return nil, fmt.Errorf("no credential identities configured")
	}
	token, err := c.tokens.Token(ctx, identity)
	if err != nil {
		c.logger.Warn("token unavailable", "identity", identity, "error", err)
		return nil, nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, nil
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetQueryParams(params).
		Get(url)
	if err != nil {
		c.logger.Info("request failed", "url", url, "error", err)
		return nil, nil
	}

	if resp.StatusCode() == http.StatusTooManyRequests {
		time.Sleep(time.Duration(c.settings.RetrySleep * float64(time.Second)))
		resp, err = c.http.R().
			SetContext(ctx).
			SetAuthToken(token).
			SetQueryParams(params).
			Get(url)
		if err != nil {
			c.logger.Info("request failed after rate-limit retry", "url", url, "error", err)
			return nil, nil
		}
	}

	if resp.StatusCode() != http.StatusOK {
		c.logger.Warn("unexpected status", "url", url, "status", resp.StatusCode())
		return nil, nil
	}

	obj, err := jason.NewObjectFromBytes(resp.Body())
	if err != nil {
		c.logger.Warn("unparseable response body", "url", url, "error", err)
		return nil, nil
	}
	return obj, nil
}

// clientParams are the canonical query parameters of the client endpoints.
func clientParams() map[string]string {
	return map[string]string{
		"market":    "from_token",
		"platform":  "desktop",
		"catalogue": "premium",
		"format":    "json",
	}
}

// ArtistAbout retrieves the public API artist object (genres, name, followers).
func (c *Client) ArtistAbout(ctx context.Context, artistID string) (*jason.Object, error) {
	return c.get(ctx, fmt.Sprintf("%s/artists/%s", c.settings.APIBaseURL, artistID), nil)
}

// ArtistInfo retrieves the client endpoint artist view: releases, verified
// and active status, related artists.
func (c *Client) ArtistInfo(ctx context.Context, artistID string) (*jason.Object, error) {
	return c.get(ctx, fmt.Sprintf("%s/artist/v1/%s", c.settings.ClientBaseURL, artistID), clientParams())
}

// ArtistInsights retrieves social links, top cities and follower counts.
func (c *Client) ArtistInsights(ctx context.Context, artistID string) (*jason.Object, error) {
	return c.get(ctx, fmt.Sprintf("%s/artist-insights/v1/%s", c.settings.ClientBaseURL, artistID), clientParams())
}

// ArtistDiscography retrieves the full release-group listing for an artist.
func (c *Client) ArtistDiscography(ctx context.Context, artistID string) (*jason.Object, error) {
	return c.get(ctx, fmt.Sprintf("%s/artist/v1/%s/desktop", c.settings.ClientBaseURL, artistID), clientParams())
}

// AlbumPlaycount retrieves the per-track playcount view of an album.
func (c *Client) AlbumPlaycount(ctx context.Context, albumID string) (*jason.Object, error) {
	return c.get(ctx, fmt.Sprintf("%s/album-playcount/v1/album/%s", c.settings.ClientBaseURL, albumID), clientParams())
}

// Playlist retrieves playlist metadata including follower counts.
func (c *Client) Playlist(ctx context.Context, playlistID string) (*jason.Object, error) {
	return c.get(ctx, fmt.Sprintf("%s/playlists/%s", c.settings.APIBaseURL, playlistID), nil)
}

// PlaylistTracks retrieves one page of a playlist's track listing.
func (c *Client) PlaylistTracks(ctx context.Context, playlistID string, offset, limit int) (*jason.Object, error) {
	return c.get(ctx, fmt.Sprintf("%s/playlists/%s/tracks", c.settings.APIBaseURL, playlistID),
		map[string]string{
			"offset": fmt.Sprintf("%d", offset),
			"limit":  fmt.Sprintf("%d", limit),
		})
}

// Tracks retrieves full metadata for up to 50 tracks in one call.
func (c *Client) Tracks(ctx context.Context, trackIDs []string) (*jason.Object, error) {
	ids := ""
	for i, id := range trackIDs {
		if i > 0 {
			ids += ","
		}
		ids += id
	}
	return c.get(ctx, fmt.Sprintf("%s/tracks", c.settings.APIBaseURL),
		map[string]string{"ids": ids})
}

// SearchPlaylists retrieves one page of playlist search results for a term.
func (c *Client) SearchPlaylists(ctx context.Context, term string, offset, limit int) (*jason.Object, error) {
	return c.get(ctx, fmt.Sprintf("%s/search", c.settings.APIBaseURL),
		map[string]string{
			"q":      term,
			"type":   "playlist",
			"offset": fmt.Sprintf("%d", offset),
			"limit":  fmt.Sprintf("%d", limit),
		})
}

// DownloadPreview fetches the raw preview audio bytes for a track, used by
// the spectrogram flow. Transient failures return nil bytes.
func (c *Client) DownloadPreview(ctx context.Context, previewURL string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, nil
	}
	resp, err := c.http.R().SetContext(ctx).Get(previewURL)
	if err != nil || resp.StatusCode() != http.StatusOK {
		c.logger.Info("preview download failed", "url", previewURL)
		return nil, nil
	}
	return resp.Body(), nil
}
