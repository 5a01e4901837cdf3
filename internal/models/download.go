package models

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"whisper-studio/internal/domain"
)

// ProgressFunc receives download progress. total is -1 when the server does
// not report a content length.
type ProgressFunc func(received, total int64)

// Downloader fetches model weights into a cache directory.
type Downloader struct {
	client *http.Client
	token  string
	log    zerolog.Logger
}

// NewDownloader builds a Downloader. token may be empty; it is only required
// for gated alignment models.
func NewDownloader(token string, log zerolog.Logger) *Downloader {
	return &Downloader{
		client: &http.Client{Timeout: 30 * time.Minute},
		token:  token,
		log:    log.With().Str("component", "models").Logger(),
	}
}

// Fetch downloads one catalog entry into cacheDir unless it is already there.
// The file is written next to its final location and renamed into place, so a
// partial download never masquerades as a usable model.
func (d *Downloader) Fetch(ctx context.Context, model domain.ModelOption, cacheDir string, progress ProgressFunc) (string, error) {
	if model.Alignment && d.token == "" {
		return "", fmt.Errorf("model %s requires an access token", model.ID)
	}
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return "", fmt.Errorf("create cache directory: %w", err)
	}

	target := filepath.Join(cacheDir, model.FileName)
	if info, err := os.Stat(target); err == nil && !info.IsDir() && info.Size() > 0 {
		d.log.Debug().Str("model", model.ID).Msg("model already cached")
		return target, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, model.URL, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	if model.Alignment && d.token != "" {
		req.Header.Set("Authorization", "Bearer "+d.token)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("download %s: %w", model.ID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download %s: unexpected status %s", model.ID, resp.Status)
	}

	tmp, err := os.CreateTemp(cacheDir, model.FileName+".partial-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	d.log.Info().Str("model", model.ID).Str("url", model.URL).Msg("downloading model")

	if err := copyWithProgress(tmp, resp.Body, resp.ContentLength, progress); err != nil {
		tmp.Close()
		return "", fmt.Errorf("download %s: %w", model.ID, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("finish temp file: %w", err)
	}
	if err := os.Rename(tmpPath, target); err != nil {
		return "", fmt.Errorf("move model into place: %w", err)
	}

	d.log.Info().Str("model", model.ID).Str("path", target).Msg("model ready")
	return target, nil
}

func copyWithProgress(dst io.Writer, src io.Reader, total int64, progress ProgressFunc) error {
	if total == 0 {
		total = -1
	}

	var received int64
	buf := make([]byte, 256*1024)
	for {
		n, readErr := src.Read(buf)
		if n > 0 {
			if _, err := dst.Write(buf[:n]); err != nil {
				return err
			}
			received += int64(n)
			if progress != nil {
				progress(received, total)
			}
		}
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			return readErr
		}
	}
}
