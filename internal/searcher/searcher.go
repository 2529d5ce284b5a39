package searcher

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dshills/docrag/internal/embedder"
	"github.com/dshills/docrag/internal/storage"
	"github.com/dshills/docrag/pkg/types"
)

const (
	// DefaultTopK is the number of results returned when a request does not set one
	DefaultTopK = 5
	// MaxTopK caps the number of results per request
	MaxTopK = 100
	// DefaultCacheSize is the number of cached query responses
	DefaultCacheSize = 1000
	// DefaultCacheTTL is how long a cached response stays valid
	DefaultCacheTTL = 5 * time.Minute
)

// ErrEmptyQuery is returned for blank query text
var ErrEmptyQuery = errors.New("query cannot be empty")

// SearchRequest contains parameters for a search operation
type SearchRequest struct {
	Query  string
	TopK   int
	Filter types.Filter
}

// SearchResponse contains search results and metadata
type SearchResponse struct {
	Results      []types.SearchResult
	TotalResults int
	Duration     time.Duration
	CacheHit     bool
}

// Options configures a Searcher
type Options struct {
	DefaultTopK int
	CacheSize   int
	CacheTTL    time.Duration // Zero uses DefaultCacheTTL, negative disables caching
	Logger      *slog.Logger
}

// cacheEntry represents a cached search response with expiration time
type cacheEntry struct {
	response  *SearchResponse
	expiresAt time.Time
}

// Searcher embeds queries, runs them against the store and assembles context
type Searcher struct {
	store       storage.Store
	embedder    embedder.Embedder
	defaultTopK int
	cacheTTL    time.Duration
	logger      *slog.Logger
	cache       *lru.Cache[[32]byte, *cacheEntry]
	cacheMu     sync.RWMutex
}

// NewSearcher creates a new Searcher instance
func NewSearcher(store storage.Store, emb embedder.Embedder, opts Options) *Searcher {
	if opts.DefaultTopK <= 0 {
		opts.DefaultTopK = DefaultTopK
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = DefaultCacheSize
	}
	if opts.CacheTTL == 0 {
		opts.CacheTTL = DefaultCacheTTL
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	cache, err := lru.New[[32]byte, *cacheEntry](opts.CacheSize)
	if err != nil {
		// This should never happen with valid size parameter
		panic(fmt.Sprintf("failed to create LRU cache: %v", err))
	}

	return &Searcher{
		store:       store,
		embedder:    emb,
		defaultTopK: opts.DefaultTopK,
		cacheTTL:    opts.CacheTTL,
		logger:      opts.Logger,
		cache:       cache,
	}
}

// Search embeds the query and returns the nearest chunks by ascending distance
func (s *Searcher) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	startTime := time.Now()

	if s.embedder == nil {
		return nil, fmt.Errorf("embedder not initialized")
	}

	if err := s.validateRequest(&req); err != nil {
		return nil, err
	}

	if s.cacheTTL > 0 {
		if cached := s.checkCache(req); cached != nil {
			cached.CacheHit = true
			cached.Duration = time.Since(startTime)
			return cached, nil
		}
	}

	vector, err := embedder.EmbedQuery(ctx, s.embedder, req.Query)
	if err != nil {
		return nil, fmt.Errorf("failed to generate query embedding: %w", err)
	}

	results, err := s.store.Query(ctx, vector, req.TopK, req.Filter)
	if err != nil {
		return nil, err
	}

	response := &SearchResponse{
		Results:      results,
		TotalResults: len(results),
		Duration:     time.Since(startTime),
	}

	if s.cacheTTL > 0 && len(results) > 0 {
		s.storeInCache(req, response)
	}

	s.logger.Debug("search complete",
		"query_len", len(req.Query), "top_k", req.TopK, "results", len(results), "duration", response.Duration)
	return response, nil
}

// Query runs Search and assembles the numbered context and deduplicated sources
func (s *Searcher) Query(ctx context.Context, req SearchRequest) (*types.RetrievalContext, error) {
	resp, err := s.Search(ctx, req)
	if err != nil {
		return nil, err
	}
	return BuildContext(resp.Results), nil
}

// BuildContext numbers results 1..N as "[i] text" joined by blank lines. Sources
// keep the first, highest-ranked result for each (source, page) pair.
func BuildContext(results []types.SearchResult) *types.RetrievalContext {
	rc := &types.RetrievalContext{
		Context: "",
		Sources: []types.Source{},
	}
	if len(results) == 0 {
		return rc
	}

	type sourceKey struct {
		source string
		page   int
	}
	seen := make(map[sourceKey]struct{}, len(results))
	parts := make([]string, 0, len(results))

	for i, r := range results {
		parts = append(parts, "["+strconv.Itoa(i+1)+"] "+r.Text)

		key := sourceKey{source: r.Metadata.Source, page: r.Metadata.Page}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		rc.Sources = append(rc.Sources, types.Source{
			Source:         r.Metadata.Source,
			FilePath:       r.Metadata.FilePath,
			Page:           r.Metadata.Page,
			ChunkIndex:     r.Metadata.ChunkIndex,
			RelevanceScore: RelevanceScore(r.Distance),
		})
	}

	rc.Context = strings.Join(parts, "\n\n")
	return rc
}

// RelevanceScore converts a cosine distance into 1 - distance clamped to
// [0, 1]. It is nil when the distance is missing or exactly zero, so it is an
// approximate ranking aid and not a calibrated probability.
func RelevanceScore(distance *float64) *float64 {
	if distance == nil || *distance == 0 {
		return nil
	}
	score := 1 - *distance
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return &score
}

// FormatContextForPrompt runs Query for req and wraps the assembled context in
// an instruction block ready to prepend to an LLM prompt. It returns "" when
// nothing was found.
func (s *Searcher) FormatContextForPrompt(ctx context.Context, req SearchRequest) (string, error) {
	rc, err := s.Query(ctx, req)
	if err != nil {
		return "", err
	}
	return FormatPrompt(req.Query, rc), nil
}

// FormatPrompt renders an already assembled context for query
func FormatPrompt(query string, rc *types.RetrievalContext) string {
	if rc == nil || rc.Context == "" {
		return ""
	}

	var b strings.Builder
	b.WriteString("Relevant document excerpts:\n\n")
	b.WriteString(rc.Context)
	b.WriteString("\n\nUse the above context to answer the following question. ")
	b.WriteString("If the context doesn't contain relevant information, say so.\n\n")
	b.WriteString("Question: ")
	b.WriteString(query)
	b.WriteString("\n\n")
	return b.String()
}

// validateRequest ensures search request is valid
func (s *Searcher) validateRequest(req *SearchRequest) error {
	if strings.TrimSpace(req.Query) == "" {
		return fmt.Errorf("%w: %w", types.ErrValidation, ErrEmptyQuery)
	}

	if req.TopK <= 0 {
		req.TopK = s.defaultTopK
	}

	if req.TopK > MaxTopK {
		req.TopK = MaxTopK
	}

	return nil
}

// checkCache returns a copy of a live cached response, or nil
func (s *Searcher) checkCache(req SearchRequest) *SearchResponse {
	hash := computeQueryHash(req)
	now := time.Now()

	s.cacheMu.RLock()
	entry, found := s.cache.Get(hash)
	if !found {
		s.cacheMu.RUnlock()
		return nil
	}

	if now.After(entry.expiresAt) {
		s.cacheMu.RUnlock()

		s.cacheMu.Lock()
		s.cache.Remove(hash)
		s.cacheMu.Unlock()
		return nil
	}

	response := copySearchResponse(entry.response)
	s.cacheMu.RUnlock()

	return response
}

// storeInCache saves a copy of the response
func (s *Searcher) storeInCache(req SearchRequest, response *SearchResponse) {
	entry := &cacheEntry{
		response:  copySearchResponse(response),
		expiresAt: time.Now().Add(s.cacheTTL),
	}

	s.cacheMu.Lock()
	s.cache.Add(computeQueryHash(req), entry)
	s.cacheMu.Unlock()
}

// InvalidateCache drops every cached response. Call it after the store changes.
func (s *Searcher) InvalidateCache() {
	s.cacheMu.Lock()
	s.cache.Purge()
	s.cacheMu.Unlock()
}

// CacheLen returns the number of cached responses
func (s *Searcher) CacheLen() int {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	return s.cache.Len()
}

// copySearchResponse creates a deep copy of a SearchResponse
func copySearchResponse(src *SearchResponse) *SearchResponse {
	if src == nil {
		return nil
	}

	dst := &SearchResponse{
		TotalResults: src.TotalResults,
		Duration:     src.Duration,
		CacheHit:     src.CacheHit,
		Results:      make([]types.SearchResult, len(src.Results)),
	}

	for i, result := range src.Results {
		dst.Results[i] = result
		if result.Distance != nil {
			d := *result.Distance
			dst.Results[i].Distance = &d
		}
	}

	return dst
}

// computeQueryHash computes a unique hash for a search request
func computeQueryHash(req SearchRequest) [32]byte {
	var data strings.Builder
	data.WriteString(req.Query)
	data.WriteString("|")
	data.WriteString(strconv.Itoa(req.TopK))

	if len(req.Filter) > 0 {
		keys := make([]string, 0, len(req.Filter))
		for k := range req.Filter {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		data.WriteString("|filter:")
		for _, k := range keys {
			fmt.Fprintf(&data, "%s=%T:%v;", k, req.Filter[k], req.Filter[k])
		}
	}

	return sha256.Sum256([]byte(data.String()))
}
