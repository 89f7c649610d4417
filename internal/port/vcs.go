package port

import "context"

// CloneInfo describes the state of a local clone after a transport operation.
type CloneInfo struct {
	Branch     string `json:"branch"`
	CommitHash string `json:"commit_hash"`
}

// GitTransport abstracts remote Git operations. Implementations report
// coarse progress through the sink and wrap remote failures in ErrTransport.
type GitTransport interface {
	// Clone clones url into dest. depth limits history depth; depth <= 0
	// means a full clone. dest must not already exist.
	Clone(ctx context.Context, url, dest string, depth int, sink ProgressSink) (CloneInfo, error)

	// Pull fetches and merges the latest changes for an existing clone at
	// dest. An already-up-to-date clone is a successful pull.
	Pull(ctx context.Context, dest string, sink ProgressSink) (CloneInfo, error)
}
