// internal/app/features/authgoogle/profile.go
package authgoogle

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// DefaultUserInfoURL is Google's OAuth2 userinfo endpoint.
const DefaultUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// Profile is the subset of the Google userinfo response used for sign-in.
type Profile struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// ProfileFetcher loads the signed-in user's profile with an access token.
type ProfileFetcher interface {
	Fetch(ctx context.Context, accessToken string) (*Profile, error)
}

// ProfileClient fetches profiles from the userinfo endpoint.
type ProfileClient struct {
	http   *resty.Client
	url    string
	logger *zap.Logger
}

// NewProfileClient creates a ProfileClient. An empty url uses DefaultUserInfoURL.
func NewProfileClient(url string, logger *zap.Logger) *ProfileClient {
	if url == "" {
		url = DefaultUserInfoURL
	}
	client := resty.New().
		SetTimeout(10*time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500*time.Millisecond).
		SetHeader("Accept", "application/json")
	return &ProfileClient{http: client, url: url, logger: logger}
}

// Fetch implements ProfileFetcher.
func (c *ProfileClient) Fetch(ctx context.Context, accessToken string) (*Profile, error) {
	var p Profile
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(accessToken).
		SetResult(&p).
		Get(c.url)
	if err != nil {
		return nil, fmt.Errorf("userinfo request: %w", err)
	}
	if resp.IsError() {
		c.logger.Warn("google userinfo returned error",
			zap.Int("status_code", resp.StatusCode()),
			zap.String("body", resp.String()))
		return nil, fmt.Errorf("userinfo status %d", resp.StatusCode())
	}
	if p.ID == "" {
		return nil, fmt.Errorf("userinfo response has no id")
	}
	return &p, nil
}
