package lifecycle

import (
	"context"
	"fmt"
	"os"
	"strings"

	"recomo/internal/fileutil"
)

// Downloader fetches the reference video for a project upload.
type Downloader func(ctx context.Context, location string) ([]byte, error)

// fetcher is the subset of the reconstruction client used for downloads.
type fetcher interface {
	Fetch(ctx context.Context, rawURL string) ([]byte, error)
}

// defaultDownloader reads http(s) URLs through f and anything else from disk.
func defaultDownloader(f fetcher) Downloader {
	return func(ctx context.Context, location string) ([]byte, error) {
		if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
			return f.Fetch(ctx, location)
		}
		path, err := fileutil.ExpandPath(strings.TrimPrefix(location, "file://"))
		if err != nil {
			return nil, err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read video: %w", err)
		}
		return data, nil
	}
}
