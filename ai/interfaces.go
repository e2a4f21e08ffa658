package ai

import "context"

// Embedder generates vector embeddings from text.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	// Returns an error if the embedding generation fails.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in
	// one batch call. The returned slice is aligned with the input: the
	// embedding at position i belongs to texts[i]. A nil entry means the
	// service silently dropped that text; callers must treat it as a
	// per-item failure, not an error for the whole batch. The result may
	// also be shorter than the input if the service truncated the batch.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}
