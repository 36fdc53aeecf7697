package localfs

import (
	"context"
	"fmt"
	"io"
	"os"
)

// Fetcher copies media from the local filesystem into the job workdir.
// Locators are plain paths; used in single-node deployments and tests.
type Fetcher struct{}

func NewFetcher() *Fetcher {
	return &Fetcher{}
}

func (f *Fetcher) Fetch(ctx context.Context, locator, destPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	src, err := os.Open(locator)
	if err != nil {
		return fmt.Errorf("open source %s: %w", locator, err)
	}
	defer src.Close()

	dst, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", destPath, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("copy source: %w", err)
	}
	return nil
}
