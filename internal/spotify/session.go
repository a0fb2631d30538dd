package spotify

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/antonholmquist/jason"
	"github.com/go-resty/resty/v2"

	"github.com/soundscout/soundscout-go/internal/conf"
	"github.com/soundscout/soundscout-go/internal/errors"
	"github.com/soundscout/soundscout-go/internal/tokenstore"
)

// TokenRefresher exchanges an identity's session cookies for a short-lived
// bearer token. Its Refresh method satisfies tokenstore.RefreshFunc.
type TokenRefresher struct {
	http     *resty.Client
	settings *conf.StreamingSettings
}

// NewTokenRefresher builds the exchanger used by the token store.
func NewTokenRefresher(settings *conf.StreamingSettings) *TokenRefresher {
	return &TokenRefresher{
		http: resty.New().
			SetTimeout(time.Duration(settings.ReadTimeout) * time.Second),
		settings: settings,
	}
}

// Refresh performs the cookie-to-token exchange against the partner endpoint.
// Unlike data fetches, a failure here is a real error: the caller retries and
// surfaces it, since no request can proceed without a token.
func (r *TokenRefresher) Refresh(ctx context.Context, identity conf.Identity) (tokenstore.Token, error) {
	resp, err := r.http.R().
		SetContext(ctx).
		SetCookie(&http.Cookie{Name: "sp_dc", Value: identity.SPDC}).
		SetCookie(&http.Cookie{Name: "sp_key", Value: identity.SPKey}).
		SetQueryParams(map[string]string{
			"reason":      "transport",
			"productType": "web_player",
		}).
		Get(r.settings.PartnerBaseURL + "/get_access_token")
	if err != nil {
		return tokenstore.Token{}, errors.New(err).
			Component("spotify").
			Category(errors.CategoryToken).
			Context("identity", identity.Name).
			Build()
	}
	if resp.StatusCode() != http.StatusOK {
		return tokenstore.Token{}, errors.Newf("token exchange returned status %d", resp.StatusCode()).
			Component("spotify").
			Category(errors.CategoryToken).
			Context("identity", identity.Name).
			Build()
	}

	obj, err := jason.NewObjectFromBytes(resp.Body())
	if err != nil {
		return tokenstore.Token{}, errors.New(fmt.Errorf("parsing token response: %w", err)).
			Component("spotify").
			Category(errors.CategoryToken).
			Build()
	}
	accessToken, err := obj.GetString("accessToken")
	if err != nil {
		return tokenstore.Token{}, errors.Newf("token response missing accessToken").
			Component("spotify").
			Category(errors.CategoryToken).
			Build()
	}
	expiresMs, err := obj.GetInt64("accessTokenExpirationTimestampMs")
	if err != nil {
		return tokenstore.Token{}, errors.Newf("token response missing expiration").
			Component("spotify").
			Category(errors.CategoryToken).
			Build()
	}

	return tokenstore.Token{
		Value:     accessToken,
		ExpiresAt: time.UnixMilli(expiresMs),
	}, nil
}
