package expand

import "context"

// Completer generates chat completions for query expansion.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}
