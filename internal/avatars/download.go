// Package avatars stores avatars exported from the hosted avatar editor.
package avatars

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

var (
	ErrInvalidURL     = errors.New("invalid avatar url")
	ErrHostNotAllowed = errors.New("avatar host not allowed")
	ErrTooLarge       = errors.New("avatar exceeds size limit")
	ErrNotGLB         = errors.New("avatar is not a glb file")
	ErrDownload       = errors.New("avatar download failed")
)

var glbMagic = []byte("glTF")

// Downloader fetches exported GLB files from allowlisted hosts.
type Downloader struct {
	Client       *http.Client
	AllowedHosts []string
	MaxBytes     int64
	Timeout      time.Duration
}

// NewDownloader builds a Downloader with its own HTTP client.
func NewDownloader(hosts []string, maxBytes int64, timeout time.Duration) *Downloader {
	if maxBytes <= 0 {
		maxBytes = 50 << 20
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Downloader{
		Client:       &http.Client{Timeout: timeout},
		AllowedHosts: hosts,
		MaxBytes:     maxBytes,
		Timeout:      timeout,
	}
}

// CheckURL validates that raw is an http(s) URL on an allowed host.
func (d *Downloader) CheckURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return nil, ErrInvalidURL
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return nil, ErrInvalidURL
	}
	if !d.allowed(u.Hostname()) {
		return nil, fmt.Errorf("%w: %s", ErrHostNotAllowed, u.Hostname())
	}
	return u, nil
}

func (d *Downloader) allowed(hostname string) bool {
	if len(d.AllowedHosts) == 0 {
		return true
	}
	hostname = strings.ToLower(hostname)
	for _, allowed := range d.AllowedHosts {
		allowed = strings.ToLower(strings.TrimSpace(allowed))
		if allowed == "" {
			continue
		}
		if hostname == allowed || strings.HasSuffix(hostname, "."+allowed) {
			return true
		}
	}
	return false
}

// Download streams the GLB at raw into a temp file and returns it rewound.
// The caller closes and removes the file.
func (d *Downloader) Download(ctx context.Context, raw string) (*os.File, int64, error) {
	u, err := d.CheckURL(raw)
	if err != nil {
		return nil, 0, err
	}

	client := d.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrDownload, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, 0, fmt.Errorf("%w: status %d", ErrDownload, resp.StatusCode)
	}
	if resp.ContentLength > d.MaxBytes {
		return nil, 0, ErrTooLarge
	}

	tmp, err := os.CreateTemp("", "motionlab-avatar-*.glb")
	if err != nil {
		return nil, 0, fmt.Errorf("create temp: %w", err)
	}
	discard := func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}

	n, err := io.Copy(tmp, io.LimitReader(resp.Body, d.MaxBytes+1))
	if err != nil {
		discard()
		return nil, 0, fmt.Errorf("%w: %v", ErrDownload, err)
	}
	if n > d.MaxBytes {
		discard()
		return nil, 0, ErrTooLarge
	}

	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		discard()
		return nil, 0, fmt.Errorf("rewind: %w", err)
	}
	head := make([]byte, len(glbMagic))
	if _, err := io.ReadFull(tmp, head); err != nil || !bytes.Equal(head, glbMagic) {
		discard()
		return nil, 0, ErrNotGLB
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		discard()
		return nil, 0, fmt.Errorf("rewind: %w", err)
	}
	return tmp, n, nil
}
