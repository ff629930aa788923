package webapi

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/overture-project/overture/internal/protocol"
	"github.com/overture-project/overture/internal/util"
)

// Submission is one finished play headed for the score server.
type Submission struct {
	MapMD5     string
	Mode       protocol.GameMode
	Mods       protocol.Mods
	Score      protocol.ScoreFrame
	Rank       string
	Passed     bool
	ReplayData []byte
}

// SubmitResult is the completion payload of a score submission.
type SubmitResult struct {
	MapMD5     string
	TotalScore int64
	Passed     bool
	Response   string
	Err        error
}

// SubmitScore uploads a finished play. The score line and the process
// list travel AES-encrypted with a shared per-submission IV, mirroring
// what the score server demands; the replay rides along as a multipart
// file part.
func (c *Client) SubmitScore(ctx context.Context, sub Submission) error {
	if err := c.requireOnline(); err != nil {
		return err
	}
	if !c.sess.SubmissionAllowed() {
		return fmt.Errorf("score submission is disabled for this server")
	}

	go func() {
		result := &SubmitResult{
			MapMD5:     sub.MapMD5,
			TotalScore: int64(sub.Score.TotalScore),
			Passed:     sub.Passed,
		}
		result.Response, result.Err = c.doSubmit(ctx, sub)
		if result.Err != nil {
			c.log.Error().Err(result.Err).Msg("Score submission failed")
			c.toast("Score submission failed.")
		}
		c.complete(ReqScoreSubmit, result)
	}()
	return nil
}

func (c *Client) doSubmit(ctx context.Context, sub Submission) (string, error) {
	srv := c.cfg.GetServerData()

	iv, err := util.NewSubmissionIV()
	if err != nil {
		return "", err
	}

	scoreLine := buildScoreLine(srv.Username, &sub)
	encScore, err := util.EncryptSubmissionDataWithIV(srv.ClientVersion, iv, []byte(scoreLine))
	if err != nil {
		return "", fmt.Errorf("failed to encrypt score line: %w", err)
	}
	encProc, err := util.EncryptSubmissionDataWithIV(srv.ClientVersion, iv, []byte("overture"))
	if err != nil {
		return "", fmt.Errorf("failed to encrypt process list: %w", err)
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	fields := map[string]string{
		"score":  encScore,
		"iv":     base64.StdEncoding.EncodeToString(iv),
		"pass":   srv.PasswordMD5,
		"osuver": srv.ClientVersion,
		"pl":     encProc,
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return "", err
		}
	}
	if len(sub.ReplayData) > 0 {
		part, err := w.CreateFormFile("score", "replay")
		if err != nil {
			return "", err
		}
		if _, err := part.Write(sub.ReplayData); err != nil {
			return "", err
		}
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	u := c.baseURL + "/web/osu-osz2-submit-modular.php"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("User-Agent", "osu!")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("submission request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("score server returned status %d", resp.StatusCode)
	}

	var out bytes.Buffer
	if _, err := out.ReadFrom(resp.Body); err != nil {
		return "", err
	}
	response := out.String()
	if strings.HasPrefix(response, "error:") {
		return "", fmt.Errorf("score server rejected submission: %s", strings.TrimPrefix(response, "error:"))
	}
	return response, nil
}

// buildScoreLine renders the colon-joined score record the server
// decrypts and verifies.
func buildScoreLine(username string, sub *Submission) string {
	s := &sub.Score
	passed := "False"
	if sub.Passed {
		passed = "True"
	}
	perfect := "False"
	if s.IsPerfect {
		perfect = "True"
	}
	return strings.Join([]string{
		sub.MapMD5,
		username,
		fmt.Sprint(s.Num300), fmt.Sprint(s.Num100), fmt.Sprint(s.Num50),
		fmt.Sprint(s.NumGeki), fmt.Sprint(s.NumKatu), fmt.Sprint(s.NumMiss),
		fmt.Sprint(s.TotalScore),
		fmt.Sprint(s.MaxCombo),
		perfect,
		sub.Rank,
		fmt.Sprint(uint32(sub.Mods)),
		passed,
		fmt.Sprint(uint8(sub.Mode)),
	}, ":")
}
