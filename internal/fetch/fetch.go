package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"inferd/internal/common/fsutil"
)

// Policy is the retry policy applied to a download. Kept as an explicit
// value so it is testable independent of the transport.
type Policy struct {
	// Attempts is the total number of GETs tried before giving up.
	Attempts int
	// Delay is the fixed pause between failed attempts.
	Delay time.Duration
}

// DefaultPolicy matches the deployment contract: 5 attempts, 5s apart.
func DefaultPolicy() Policy {
	return Policy{Attempts: 5, Delay: 5 * time.Second}
}

// Fetcher downloads a model file to a local path if it is not already there.
type Fetcher struct {
	client *http.Client
	policy Policy
	log    zerolog.Logger
}

// New builds a Fetcher. A nil client means http.DefaultClient, which follows
// redirects (model hosts commonly redirect to a CDN).
func New(client *http.Client, policy Policy, log zerolog.Logger) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	if policy.Attempts < 1 {
		policy.Attempts = 1
	}
	return &Fetcher{client: client, policy: policy, log: log}
}

// Ensure makes sure the file at path exists, downloading it from url when
// absent. An existing file is trusted as-is and causes zero network calls;
// the check is existence-only, content is not verified against the URL.
//
// The body streams to path+".partial" and is renamed onto path only after a
// complete write, so a crash mid-download never leaves a partial artifact at
// the target path.
func (f *Fetcher) Ensure(ctx context.Context, url, path string) error {
	if fsutil.PathExists(path) {
		f.log.Info().Str("path", path).Msg("model file already present, skipping download")
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create model dir: %w", err)
	}

	start := time.Now()
	var lastErr error
	for attempt := 1; attempt <= f.policy.Attempts; attempt++ {
		n, err := f.download(ctx, url, path)
		if err == nil {
			downloadBytes.Add(float64(n))
			f.log.Info().
				Str("path", path).
				Int64("bytes", n).
				Dur("dur", time.Since(start)).
				Int("attempt", attempt).
				Msg("model download complete")
			return nil
		}
		downloadFailures.Inc()
		lastErr = err
		f.log.Warn().
			Err(err).
			Int("attempt", attempt).
			Int("max_attempts", f.policy.Attempts).
			Msg("model download failed")
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if attempt < f.policy.Attempts {
			select {
			case <-time.After(f.policy.Delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return fmt.Errorf("download failed after %d attempts: %w", f.policy.Attempts, lastErr)
}

// download performs a single GET and writes the body to a temp file that is
// renamed onto path on success. Returns the number of bytes written.
func (f *Fetcher) download(ctx context.Context, url, path string) (int64, error) {
	downloadAttempts.Inc()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, fmt.Errorf("unexpected status %s", resp.Status)
	}

	tmp := path + ".partial"
	out, err := os.Create(tmp)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(out, resp.Body)
	if err != nil {
		out.Close()
		os.Remove(tmp)
		return 0, fmt.Errorf("write body: %w", err)
	}
	if err := out.Sync(); err != nil {
		out.Close()
		os.Remove(tmp)
		return 0, fmt.Errorf("sync: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return 0, err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return 0, fmt.Errorf("rename into place: %w", err)
	}
	return n, nil
}
