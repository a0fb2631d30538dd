package spotify

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundscout/soundscout-go/internal/conf"
)

func testRefresher(t *testing.T) *TokenRefresher {
	t.Helper()
	refresher := NewTokenRefresher(testStreamingSettings())
	httpmock.ActivateNonDefault(refresher.http.GetClient())
	t.Cleanup(httpmock.DeactivateAndReset)
	return refresher
}

func TestRefreshExchangesCookiesForToken(t *testing.T) {
	refresher := testRefresher(t)
	expiry := time.Now().Add(time.Hour).UnixMilli()

	var gotCookies map[string]string
	httpmock.RegisterResponder(http.MethodGet, "https://partner.example.com/get_access_token",
		func(req *http.Request) (*http.Response, error) {
			gotCookies = map[string]string{}
			for _, c := range req.Cookies() {
				gotCookies[c.Name] = c.Value
			}
			body := fmt.Sprintf(`{"accessToken": "tok-xyz", "accessTokenExpirationTimestampMs": %d}`, expiry)
			return httpmock.NewStringResponse(http.StatusOK, body), nil
		})

	token, err := refresher.Refresh(context.Background(), conf.Identity{
		Name: "alpha", SPDC: "dc-a", SPKey: "key-a",
	})
	require.NoError(t, err)
	assert.Equal(t, "tok-xyz", token.Value)
	assert.Equal(t, time.UnixMilli(expiry), token.ExpiresAt)
	assert.Equal(t, "dc-a", gotCookies["sp_dc"])
	assert.Equal(t, "key-a", gotCookies["sp_key"])
}

func TestRefreshFailsOnBadStatus(t *testing.T) {
	refresher := testRefresher(t)

	httpmock.RegisterResponder(http.MethodGet, "https://partner.example.com/get_access_token",
		httpmock.NewStringResponder(http.StatusUnauthorized, ""))

	_, err := refresher.Refresh(context.Background(), conf.Identity{Name: "alpha"})
	assert.Error(t, err, "token failures are real errors, unlike data fetches")
}

func TestRefreshFailsOnMissingFields(t *testing.T) {
	refresher := testRefresher(t)

	httpmock.RegisterResponder(http.MethodGet, "https://partner.example.com/get_access_token",
		httpmock.NewStringResponder(http.StatusOK, `{"accessToken": "tok"}`))

	_, err := refresher.Refresh(context.Background(), conf.Identity{Name: "alpha"})
	assert.Error(t, err, "expiration timestamp is required")
}
