package port

import "context"

// SourceFetcher materializes the source media identified by locator at
// destPath inside the job's working directory. Locators are opaque here:
// object keys for bucket-backed storage, absolute paths for local files.
type SourceFetcher interface {
	Fetch(ctx context.Context, locator, destPath string) error
}
