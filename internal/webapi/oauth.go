package webapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const oauthPollInterval = 3 * time.Second

// OAuthPollResult is the completion payload of a device-code poll.
type OAuthPollResult struct {
	Token string
	Err   error
}

type oauthTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	Error       string `json:"error"`
}

// PollOAuthToken polls the token endpoint with a device code until the
// user approves the login in their browser, the code expires, or the
// context ends. This runs before login, so it is exempt from the
// logged-in requirement every other request carries. The result lands on
// the dispatch queue as a ReqOAuthPoll completion.
func (c *Client) PollOAuthToken(ctx context.Context, deviceCode string) {
	c.sess.BeginPolling()

	go func() {
		result := &OAuthPollResult{}
		result.Token, result.Err = c.pollLoop(ctx, deviceCode)
		if result.Err == nil {
			c.sess.SetOAuthToken(result.Token)
		} else {
			c.log.Warn().Err(result.Err).Msg("OAuth polling ended without a token")
		}
		c.complete(ReqOAuthPoll, result)
	}()
}

func (c *Client) pollLoop(ctx context.Context, deviceCode string) (string, error) {
	ticker := time.NewTicker(oauthPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}

		token, retry, err := c.pollOnce(ctx, deviceCode)
		if err != nil {
			return "", err
		}
		if retry {
			continue
		}
		return token, nil
	}
}

// pollOnce asks the token endpoint once. retry means the user has not
// decided yet.
func (c *Client) pollOnce(ctx context.Context, deviceCode string) (token string, retry bool, err error) {
	form := url.Values{}
	form.Set("grant_type", "urn:ietf:params:oauth:grant-type:device_code")
	form.Set("device_code", deviceCode)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/oauth/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", false, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", false, fmt.Errorf("token poll failed: %w", err)
	}
	defer resp.Body.Close()

	var tr oauthTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", false, fmt.Errorf("malformed token response: %w", err)
	}

	switch tr.Error {
	case "":
	case "authorization_pending", "slow_down":
		return "", true, nil
	default:
		return "", false, fmt.Errorf("authorization refused: %s", tr.Error)
	}
	if tr.AccessToken == "" {
		return "", false, fmt.Errorf("token endpoint returned no token")
	}
	return tr.AccessToken, false, nil
}
