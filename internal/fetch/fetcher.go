package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"etch/internal/catalog"
	"etch/internal/faults"
	"etch/internal/logging"
)

// downloadBufferSize is the chunk size for streaming the response body.
const downloadBufferSize = 32 * 1024

// Progress reports download state to the caller. BytesPerSecond is averaged
// over the whole transfer.
type Progress struct {
	BytesDone      int64
	TotalBytes     int64
	BytesPerSecond int64
}

// Fetcher downloads catalog images and verifies their checksums.
type Fetcher struct {
	client *http.Client
	logger *slog.Logger
}

// NewFetcher constructs a fetcher. A nil client uses http.DefaultClient.
func NewFetcher(client *http.Client, logger *slog.Logger) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Fetcher{
		client: client,
		logger: logging.NewComponentLogger(logger, "fetcher"),
	}
}

// Download fetches image into destDir, reporting progress, and verifies the
// result against the image's published digest. A failed verification removes
// the corrupt file. The returned path is the downloaded file.
func (f *Fetcher) Download(ctx context.Context, image *catalog.Image, destDir string, progress func(Progress)) (string, error) {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", faults.Wrap(faults.ErrIO, "fetch", "download", "create download directory", err)
	}
	outputPath := filepath.Join(destDir, DownloadFilename(image))

	if QuickVerify(outputPath, image.SHA256) {
		f.logger.Info("download already present",
			logging.String(logging.FieldSource, outputPath),
		)
		return outputPath, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, image.DownloadURL, nil)
	if err != nil {
		return "", faults.Wrap(faults.ErrIO, "fetch", "download", "build request", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return "", faults.Wrap(faults.ErrIO, "fetch", "download", "start download", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", faults.Wrap(faults.ErrIO, "fetch", "download",
			fmt.Sprintf("unexpected status %s", resp.Status), nil)
	}

	total := image.SizeBytes
	if resp.ContentLength > 0 {
		total = resp.ContentLength
	}

	if err := f.stream(ctx, resp.Body, outputPath, total, progress); err != nil {
		_ = os.Remove(outputPath)
		return "", err
	}

	if image.SHA256 != "" && !strings.HasPrefix(image.SHA256, "PLACEHOLDER") {
		if err := VerifySHA256(outputPath, image.SHA256); err != nil {
			_ = os.Remove(outputPath)
			return "", err
		}
	}

	f.logger.Info("download complete",
		logging.String(logging.FieldSource, outputPath),
		logging.Int64("bytes", total),
	)
	return outputPath, nil
}

func (f *Fetcher) stream(ctx context.Context, body io.Reader, outputPath string, total int64, progress func(Progress)) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return faults.Wrap(faults.ErrIO, "fetch", "download", "create output file", err)
	}
	defer file.Close()

	buf := make([]byte, downloadBufferSize)
	var downloaded int64
	start := time.Now()

	for {
		if err := ctx.Err(); err != nil {
			return faults.Wrap(faults.ErrIO, "fetch", "download", "download canceled", err)
		}
		n, readErr := body.Read(buf)
		if n > 0 {
			if _, writeErr := file.Write(buf[:n]); writeErr != nil {
				return faults.Wrap(faults.ErrIO, "fetch", "download", "write output file", writeErr)
			}
			downloaded += int64(n)
			if progress != nil {
				progress(Progress{
					BytesDone:      downloaded,
					TotalBytes:     total,
					BytesPerSecond: averageRate(downloaded, time.Since(start)),
				})
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return faults.Wrap(faults.ErrIO, "fetch", "download", "read response body", readErr)
		}
	}

	if err := file.Sync(); err != nil {
		return faults.Wrap(faults.ErrIO, "fetch", "download", "sync output file", err)
	}
	return nil
}

// DownloadFilename derives the local filename for a catalog image.
func DownloadFilename(image *catalog.Image) string {
	id := strings.ReplaceAll(image.ID, " ", "-")
	version := strings.ReplaceAll(image.Version, " ", "-")
	return fmt.Sprintf("%s-%s.iso", id, version)
}

func averageRate(bytes int64, elapsed time.Duration) int64 {
	seconds := elapsed.Seconds()
	if seconds <= 0 {
		return 0
	}
	return int64(float64(bytes) / seconds)
}
