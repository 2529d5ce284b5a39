// Package embedder generates vector embeddings for document chunks using various providers.
//
// Every provider implements the same order-preserving batch contract: N texts in,
// N vectors out, in input order, or an error and no vectors at all.
//
// # Basic Usage
//
//	emb, err := embedder.New(embedder.Config{Provider: embedder.ProviderLocal})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer emb.Close()
//
//	resp, err := emb.GenerateBatch(ctx, embedder.BatchEmbeddingRequest{
//	    Texts: []string{"first chunk", "second chunk"},
//	})
//
// Large inputs go through EmbedTexts, which splits them into provider-sized
// batches and concatenates the results in order:
//
//	vectors, err := embedder.EmbedTexts(ctx, emb, texts, 100)
//
// # Provider Selection
//
// NewFromEnv picks a provider from the environment:
//
//  1. If DOCRAG_EMBEDDING_PROVIDER is set, use it
//  2. Else if OPENAI_API_KEY is set, use OpenAI (or any compatible server)
//  3. Else if GEMINI_API_KEY is set, use Gemini
//  4. Else if JINA_API_KEY is set, use Jina AI
//  5. Else fall back to the local provider (offline mode)
//
// # Providers
//
// OpenAI (github.com/sashabaranov/go-openai):
//   - Works against api.openai.com or any OpenAI-compatible endpoint via BaseURL,
//     e.g. a self-hosted sentence-transformers server serving
//     paraphrase-multilingual-MiniLM-L12-v2
//   - Dimensions: model-defined (1536 for text-embedding-3-small, 384 for MiniLM)
//
// Gemini (github.com/google/generative-ai-go):
//   - Model: text-embedding-004, 768 dimensions
//
// Jina AI (REST):
//   - Model: jina-embeddings-v3, 1024 dimensions
//
// Local:
//   - Deterministic feature hashing of word tokens, 384 dimensions
//   - No network, no model download; similar wording gives similar vectors,
//     which is enough for tests and offline demos
//
// # Caching
//
// Providers share an LRU cache keyed by the SHA-256 of the text. Batch calls
// only send cache misses to the remote API.
//
// # Retries and Rate Limits
//
// Remote calls are retried with exponential backoff (3 attempts, 100ms to 5s).
// Client errors other than 429 are not retried. A token-bucket limiter from
// golang.org/x/time/rate can cap requests per second.
package embedder
