// Package images resolves scraped image references (remote URLs or inline
// data URIs) to files under a local directory served statically by the API.
// Failures are isolated per image: a broken reference degrades one entry to a
// missing path, never the batch or the run.
package images

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode"
)

const maxBaseNameLen = 100

// Request pairs an image reference with the base name its file should get.
// LocalPath is populated by ResolveAll; nil means the image could not be
// resolved.
type Request struct {
	Ref       *string
	BaseName  string
	LocalPath *string
}

// Options configures a Fetcher. Zero fields fall back to the defaults the
// target sites were tuned against.
type Options struct {
	Dir       string
	WebPrefix string
	Workers   int
	Timeout   time.Duration
}

type Fetcher struct {
	dir       string
	webPrefix string
	workers   int
	client    *http.Client
	logger    *slog.Logger
}

func NewFetcher(opts Options, logger *slog.Logger) *Fetcher {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.WebPrefix == "" {
		opts.WebPrefix = "/imagens_ifood"
	}
	return &Fetcher{
		dir:       opts.Dir,
		webPrefix: strings.TrimSuffix(opts.WebPrefix, "/"),
		workers:   opts.Workers,
		client: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				// Several storefront CDNs serve broken certificate
				// chains; verification is deliberately disabled.
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			},
		},
		logger: logger.With("component", "image_fetcher"),
	}
}

// ResetDir deletes every file in the image directory so stale images from a
// previous run never leak into a new result set. The directory is created if
// absent.
func (f *Fetcher) ResetDir() error {
	entries, err := os.ReadDir(f.dir)
	if os.IsNotExist(err) {
		return os.MkdirAll(f.dir, 0o755)
	}
	if err != nil {
		return fmt.Errorf("failed to read image directory: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(f.dir, entry.Name())
		if err := os.Remove(path); err != nil {
			f.logger.Error("failed to remove stale image", "path", path, "error", err)
		}
	}
	return nil
}

// ResolveOne writes the referenced image to disk and returns its web path.
// Any decode, network, or filesystem error is logged and reported as an empty
// path; a nil ref is skipped the same way.
func (f *Fetcher) ResolveOne(ctx context.Context, ref *string, baseName string) string {
	if ref == nil || *ref == "" {
		f.logger.Warn("image reference is empty, skipping download", "name", baseName)
		return ""
	}

	name := sanitizeBaseName(baseName)
	target := filepath.Join(f.dir, name+".png")

	var data []byte
	var err error
	if strings.HasPrefix(*ref, "data:image") {
		data, err = decodeDataURI(*ref)
	} else {
		data, err = f.download(ctx, *ref)
	}
	if err != nil {
		f.logger.Error("failed to resolve image", "ref", truncate(*ref, 80), "error", err)
		return ""
	}

	if err := os.WriteFile(target, data, 0o644); err != nil {
		f.logger.Error("failed to write image", "path", target, "error", err)
		return ""
	}

	f.logger.Info("image saved", "path", target)
	return f.webPrefix + "/" + name + ".png"
}

// ResolveAll resolves a batch concurrently with a bounded worker pool, waits
// for every fetch to finish, and preserves input ordering. One failed image
// never fails the batch.
func (f *Fetcher) ResolveAll(ctx context.Context, reqs []Request) {
	if len(reqs) == 0 {
		return
	}

	sem := make(chan struct{}, f.workers)
	var wg sync.WaitGroup
	for i := range reqs {
		if reqs[i].Ref == nil {
			continue
		}
		wg.Add(1)
		go func(r *Request) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if path := f.ResolveOne(ctx, r.Ref, r.BaseName); path != "" {
				r.LocalPath = &path
			}
		}(&reqs[i])
	}
	wg.Wait()
}

func (f *Fetcher) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d downloading image", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image body: %w", err)
	}
	return data, nil
}

func decodeDataURI(uri string) ([]byte, error) {
	_, encoded, ok := strings.Cut(uri, ",")
	if !ok {
		return nil, fmt.Errorf("malformed data URI")
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64 image: %w", err)
	}
	return data, nil
}

// sanitizeBaseName keeps letters and digits in any script, plus the few
// separators that are safe in file names. Accented storefront names stay
// intact.
func sanitizeBaseName(name string) string {
	kept := make([]rune, 0, len(name))
	for _, r := range name {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			kept = append(kept, r)
		case r == ' ', r == '_', r == '-':
			kept = append(kept, r)
		}
	}
	if len(kept) > maxBaseNameLen {
		kept = kept[:maxBaseNameLen]
	}
	return string(kept)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
