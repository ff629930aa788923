package webapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
)

// UpdateFile is one downloadable file advertised by the update endpoint.
type UpdateFile struct {
	Filename    string `json:"filename"`
	FileVersion string `json:"file_version"`
	FileHash    string `json:"file_hash"`
	Timestamp   string `json:"timestamp"`
}

// UpdateCheckResult completes ReqUpdateCheck.
type UpdateCheckResult struct {
	Files []UpdateFile
	Err   error
}

// Available reports whether the endpoint advertised any newer files.
func (r *UpdateCheckResult) Available() bool {
	return r.Err == nil && len(r.Files) > 0
}

// CheckForUpdate asks the update endpoint whether newer client files
// exist for the configured version. Needs no session; safe to call
// before login.
func (c *Client) CheckForUpdate(ctx context.Context) {
	go func() {
		result := c.doUpdateCheck(ctx)
		if result.Err != nil {
			c.log.Warn().Err(result.Err).Msg("Update check failed")
		} else if result.Available() {
			c.log.Info().Int("files", len(result.Files)).Msg("Client update available")
		}
		c.complete(ReqUpdateCheck, result)
	}()
}

func (c *Client) doUpdateCheck(ctx context.Context) *UpdateCheckResult {
	q := url.Values{}
	q.Set("action", "check")
	q.Set("stream", "stable40")
	q.Set("ver", c.cfg.GetServerData().ClientVersion)

	body, err := c.get(ctx, "/web/check-updates.php", q)
	if err != nil {
		return &UpdateCheckResult{Err: err}
	}

	var files []UpdateFile
	if err := json.Unmarshal(body, &files); err != nil {
		return &UpdateCheckResult{Err: fmt.Errorf("malformed update response: %w", err)}
	}
	return &UpdateCheckResult{Files: files}
}
