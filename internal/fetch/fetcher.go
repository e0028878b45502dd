// Package fetch retrieves post content for parsed references.
package fetch

import (
	"context"
	"errors"

	"postsaver/internal/link"
)

// Content is the retrieved body of a post.
type Content struct {
	// Text is the post body. May be empty for media-only posts.
	Text string
	// FetchID correlates the retrieval across logs and storage.
	FetchID string
}

// ErrNotFound means the referenced post does not exist or is not visible
// to the fetching identity.
var ErrNotFound = errors.New("post not found")

// Fetcher retrieves post content. Implementations must honor ctx
// cancellation; a fetch failure never consumes user quota.
type Fetcher interface {
	Fetch(ctx context.Context, userID int64, ref link.Reference) (Content, error)
}
