package webapi

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/overture-project/overture/internal/util"
)

// mapUploadTimeout bounds one map upload end to end.
const mapUploadTimeout = 60 * time.Second

// MapUploadResult is the completion payload of a map upload.
type MapUploadResult struct {
	MD5 string
	Err error
}

// UploadMap serves a server request for a map file the server is
// missing, keyed by the map's hash. The map must be in the local cache
// and the on-disk file must still hash to the requested value; any
// failure is logged and the request abandoned, never retried.
func (c *Client) UploadMap(ctx context.Context, md5 string) error {
	if err := c.requireOnline(); err != nil {
		return err
	}
	if c.beatmaps == nil {
		return fmt.Errorf("no local beatmap database")
	}

	_, found, err := c.beatmaps.LookupByMD5(md5)
	if err != nil {
		return err
	}
	if !found {
		c.log.Warn().Str("md5", md5).Msg("Server requested a map we do not have")
		return nil
	}
	path := c.mapFilePath(md5)

	// Build the url now; the credentials could change while the file is
	// being read.
	q := url.Values{}
	q.Set("hash", md5)
	c.authParams(q)
	u := fmt.Sprintf("%s/web/overture-submit-map.php?%s", c.baseURL, q.Encode())

	go func() {
		result := &MapUploadResult{MD5: md5}
		result.Err = c.doUploadMap(ctx, u, md5, path)
		if result.Err != nil {
			c.log.Warn().Err(result.Err).Str("md5", md5).Msg("Map upload abandoned")
		}
		c.complete(ReqMapUpload, result)
	}()
	return nil
}

func (c *Client) doUploadMap(ctx context.Context, u, md5, path string) error {
	data, err := readMapFile(path, md5)
	if err != nil {
		return err
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("osu_file", md5+".osu")
	if err != nil {
		return err
	}
	if _, err := part.Write(data); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("User-Agent", "osu!")

	resp, err := c.uploader.Do(req)
	if err != nil {
		return fmt.Errorf("map upload request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("map server returned status %d", resp.StatusCode)
	}
	return nil
}

// readMapFile loads a cached map file and verifies it still hashes to
// the value the server asked for. A file edited since it was cached
// must not be uploaded under the stale hash.
func readMapFile(path, md5 string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read map file: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("map file %s is empty", path)
	}
	if got := util.MD5Hex(data); got != md5 {
		return nil, fmt.Errorf("map file %s hashes to %s, want %s", path, got, md5)
	}
	return data, nil
}

// mapFilePath is where the session's on-disk cache keeps a difficulty.
func (c *Client) mapFilePath(md5 string) string {
	return filepath.Join(c.cfg.GetServerData().DataDirectory, c.sess.Endpoint(), "maps", md5+".osu")
}
