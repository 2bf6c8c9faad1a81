package retrieve

import (
	"context"

	"github.com/meridianlab/semsearch/internal/domain"
)

// Repository defines the vector search contract.
type Repository interface {
	SearchKNN(
		ctx context.Context, vector []float32, filters domain.Filters,
		topK int, sourceQuery string,
	) ([]domain.Candidate, error)
}

// Embedder vectorizes text into embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
