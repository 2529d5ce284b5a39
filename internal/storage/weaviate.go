package storage

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/go-openapi/strfmt"
	"github.com/weaviate/weaviate-go-client/v4/weaviate"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/auth"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"github.com/dshills/docrag/pkg/types"
)

// weaviateBatchSize bounds the objects sent per batch request
const weaviateBatchSize = 200

// WeaviateConfig holds connection settings for a Weaviate instance
type WeaviateConfig struct {
	Host   string // host[:port], an http(s):// prefix sets the scheme
	Scheme string
	APIKey string
}

// WeaviateStore implements Store on a Weaviate class with client-supplied vectors
type WeaviateStore struct {
	client    *weaviate.Client
	className string
	logger    *slog.Logger
	mu        sync.Mutex
}

// NewWeaviateStore connects to Weaviate and creates the class for collection if missing
func NewWeaviateStore(ctx context.Context, cfg WeaviateConfig, collection string, logger *slog.Logger) (*WeaviateStore, error) {
	if collection == "" {
		collection = DefaultCollection
	}
	if logger == nil {
		logger = slog.Default()
	}

	scheme := cfg.Scheme
	host := cfg.Host
	switch {
	case strings.HasPrefix(host, "https://"):
		scheme, host = "https", strings.TrimPrefix(host, "https://")
	case strings.HasPrefix(host, "http://"):
		scheme, host = "http", strings.TrimPrefix(host, "http://")
	}
	if scheme == "" {
		scheme = "http"
	}

	wcfg := weaviate.Config{
		Host:   host,
		Scheme: scheme,
	}
	if cfg.APIKey != "" {
		wcfg.AuthConfig = auth.ApiKey{Value: cfg.APIKey}
	}

	client, err := weaviate.NewClient(wcfg)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create weaviate client: %w", types.ErrStore, err)
	}

	s := &WeaviateStore{
		client:    client,
		className: ClassName(collection),
		logger:    logger,
	}
	if err := s.ensureClass(ctx); err != nil {
		return nil, err
	}

	logger.Debug("weaviate store ready", "host", host, "class", s.className)
	return s, nil
}

// ClassName turns a collection name into a valid Weaviate class name
func ClassName(collection string) string {
	var b strings.Builder
	upper := true
	for _, r := range collection {
		if r == '_' || r == '-' || r == ' ' || r == '.' {
			upper = true
			continue
		}
		if upper {
			b.WriteString(strings.ToUpper(string(r)))
			upper = false
			continue
		}
		b.WriteRune(r)
	}
	if b.Len() == 0 {
		return "Documents"
	}
	return b.String()
}

// classDefinition describes the properties stored per record
func (s *WeaviateStore) classDefinition() *models.Class {
	return &models.Class{
		Class:       s.className,
		Description: "PDF chunks with client-supplied embeddings",
		Properties: []*models.Property{
			{Name: "text", DataType: []string{"text"}},
			{Name: types.FieldSource, DataType: []string{"text"}, Tokenization: "field"},
			{Name: types.FieldFilePath, DataType: []string{"text"}, Tokenization: "field"},
			{Name: types.FieldPage, DataType: []string{"int"}},
			{Name: types.FieldChunkIndex, DataType: []string{"int"}},
			{Name: types.FieldTotalChunks, DataType: []string{"int"}},
			{Name: types.FieldCharCount, DataType: []string{"int"}},
		},
		Vectorizer:      "none",
		VectorIndexType: "hnsw",
		VectorIndexConfig: map[string]interface{}{
			"distance": "cosine",
		},
	}
}

func (s *WeaviateStore) ensureClass(ctx context.Context) error {
	exists, err := s.client.Schema().ClassExistenceChecker().WithClassName(s.className).Do(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to check class %s: %w", types.ErrStore, s.className, err)
	}
	if exists {
		return nil
	}
	if err := s.client.Schema().ClassCreator().WithClass(s.classDefinition()).Do(ctx); err != nil {
		return fmt.Errorf("%w: failed to create class %s: %w", types.ErrStore, s.className, err)
	}
	return nil
}

// Add writes records in batches; ids are the deterministic record UUIDs so
// re-adding a record replaces it
func (s *WeaviateStore) Add(ctx context.Context, records []types.StoredRecord) error {
	if len(records) == 0 {
		return nil
	}
	if _, err := validateRecords(records); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := 0; i < len(records); i += weaviateBatchSize {
		end := i + weaviateBatchSize
		if end > len(records) {
			end = len(records)
		}

		batcher := s.client.Batch().ObjectsBatcher()
		for j := i; j < end; j++ {
			r := records[j]
			batcher = batcher.WithObjects(&models.Object{
				Class:      s.className,
				ID:         strfmt.UUID(r.ID),
				Properties: recordProperties(r),
				Vector:     r.Embedding,
			})
		}

		resp, err := batcher.Do(ctx)
		if err != nil {
			return fmt.Errorf("%w: failed to insert batch %d-%d: %w", types.ErrStore, i, end, err)
		}
		for _, obj := range resp {
			if obj.Result != nil && obj.Result.Errors != nil && len(obj.Result.Errors.Error) > 0 {
				return fmt.Errorf("%w: object %s: %s", types.ErrStore, obj.ID, obj.Result.Errors.Error[0].Message)
			}
		}
	}

	return nil
}

func recordProperties(r types.StoredRecord) map[string]interface{} {
	props := map[string]interface{}{"text": r.Text}
	for k, v := range r.Metadata.AsMap() {
		props[k] = v
	}
	return props
}

// resultFields are requested on every Get query
var resultFields = []graphql.Field{
	{Name: "text"},
	{Name: types.FieldSource},
	{Name: types.FieldFilePath},
	{Name: types.FieldPage},
	{Name: types.FieldChunkIndex},
	{Name: types.FieldTotalChunks},
	{Name: types.FieldCharCount},
	{Name: "_additional", Fields: []graphql.Field{{Name: "id"}, {Name: "distance"}}},
}

// Query runs a nearVector search with optional exact-match where filters
func (s *WeaviateStore) Query(ctx context.Context, vector []float32, topK int, filter types.Filter) ([]types.SearchResult, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("%w: empty query vector", types.ErrValidation)
	}
	terms, err := normalizeFilter(filter)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrValidation, err)
	}
	if topK <= 0 {
		return []types.SearchResult{}, nil
	}

	nearVector := s.client.GraphQL().NearVectorArgBuilder().WithVector(vector)
	get := s.client.GraphQL().Get().
		WithClassName(s.className).
		WithFields(resultFields...).
		WithNearVector(nearVector).
		WithLimit(topK)
	if where := buildWhere(terms); where != nil {
		get = get.WithWhere(where)
	}

	result, err := get.Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: search failed: %w", types.ErrStore, err)
	}
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("%w: search failed: %s", types.ErrStore, result.Errors[0].Message)
	}

	results := parseGetResults(result.Data, s.className)
	sort.SliceStable(results, func(i, j int) bool {
		di, dj := distanceOf(results[i]), distanceOf(results[j])
		if di != dj {
			return di < dj
		}
		return results[i].ID < results[j].ID
	})
	return results, nil
}

func distanceOf(r types.SearchResult) float64 {
	if r.Distance == nil {
		return 2
	}
	return *r.Distance
}

// buildWhere combines filter terms with And
func buildWhere(terms []filterTerm) *filters.WhereBuilder {
	if len(terms) == 0 {
		return nil
	}

	operands := make([]*filters.WhereBuilder, 0, len(terms))
	for _, t := range terms {
		w := filters.Where().WithPath([]string{t.field}).WithOperator(filters.Equal)
		if t.isText {
			w = w.WithValueString(t.str)
		} else {
			w = w.WithValueInt(t.num)
		}
		operands = append(operands, w)
	}

	if len(operands) == 1 {
		return operands[0]
	}
	return filters.Where().WithOperator(filters.And).WithOperands(operands)
}

// parseGetResults reads Get.<class>[] from a GraphQL response
func parseGetResults(data map[string]models.JSONObject, className string) []types.SearchResult {
	results := make([]types.SearchResult, 0)

	get, ok := data["Get"].(map[string]interface{})
	if !ok {
		return results
	}
	items, ok := get[className].([]interface{})
	if !ok {
		return results
	}

	for _, item := range items {
		obj, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		r := types.SearchResult{
			Text: stringValue(obj["text"]),
			Metadata: types.Metadata{
				Source:      stringValue(obj[types.FieldSource]),
				FilePath:    stringValue(obj[types.FieldFilePath]),
				Page:        intValue(obj[types.FieldPage]),
				ChunkIndex:  intValue(obj[types.FieldChunkIndex]),
				TotalChunks: intValue(obj[types.FieldTotalChunks]),
				CharCount:   intValue(obj[types.FieldCharCount]),
			},
		}
		if additional, ok := obj["_additional"].(map[string]interface{}); ok {
			r.ID = stringValue(additional["id"])
			if d, ok := additional["distance"].(float64); ok {
				r.Distance = &d
			}
		}
		results = append(results, r)
	}
	return results
}

// ListSources aggregates by source with chunk counts and page bounds
func (s *WeaviateStore) ListSources(ctx context.Context) ([]types.DocumentSummary, error) {
	result, err := s.client.GraphQL().Aggregate().
		WithClassName(s.className).
		WithGroupBy(types.FieldSource).
		WithFields(
			graphql.Field{Name: "groupedBy", Fields: []graphql.Field{{Name: "value"}}},
			graphql.Field{Name: "meta", Fields: []graphql.Field{{Name: "count"}}},
			graphql.Field{Name: types.FieldPage, Fields: []graphql.Field{{Name: "minimum"}, {Name: "maximum"}}},
			graphql.Field{Name: types.FieldFilePath, Fields: []graphql.Field{
				{Name: "topOccurrences", Fields: []graphql.Field{{Name: "value"}}},
			}},
		).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: aggregate sources: %w", types.ErrStore, err)
	}
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("%w: aggregate sources: %s", types.ErrStore, result.Errors[0].Message)
	}

	summaries := parseSourceGroups(result.Data, s.className)
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].Source < summaries[j].Source })
	return summaries, nil
}

// parseSourceGroups reads Aggregate.<class>[] grouped by source
func parseSourceGroups(data map[string]models.JSONObject, className string) []types.DocumentSummary {
	summaries := make([]types.DocumentSummary, 0)

	for _, group := range aggregateItems(data, className) {
		var summary types.DocumentSummary
		if gb, ok := group["groupedBy"].(map[string]interface{}); ok {
			summary.Source = stringValue(gb["value"])
		}
		if meta, ok := group["meta"].(map[string]interface{}); ok {
			summary.TotalChunks = intValue(meta["count"])
		}
		if fp, ok := group[types.FieldFilePath].(map[string]interface{}); ok {
			if top, ok := fp["topOccurrences"].([]interface{}); ok && len(top) > 0 {
				if first, ok := top[0].(map[string]interface{}); ok {
					summary.FilePath = stringValue(first["value"])
				}
			}
		}

		hasPages := false
		if page, ok := group[types.FieldPage].(map[string]interface{}); ok {
			_, hasMin := page["minimum"].(float64)
			_, hasMax := page["maximum"].(float64)
			if hasMin && hasMax {
				summary.MinPage = intValue(page["minimum"])
				summary.MaxPage = intValue(page["maximum"])
				hasPages = summary.MinPage > 0
			}
		}
		summary.PageRange = types.FormatPageRange(summary.MinPage, summary.MaxPage, hasPages)
		summaries = append(summaries, summary)
	}
	return summaries
}

func aggregateItems(data map[string]models.JSONObject, className string) []map[string]interface{} {
	agg, ok := data["Aggregate"].(map[string]interface{})
	if !ok {
		return nil
	}
	raw, ok := agg[className].([]interface{})
	if !ok {
		return nil
	}
	items := make([]map[string]interface{}, 0, len(raw))
	for _, item := range raw {
		if m, ok := item.(map[string]interface{}); ok {
			items = append(items, m)
		}
	}
	return items
}

// Reset deletes the class and recreates it empty
func (s *WeaviateStore) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	exists, err := s.client.Schema().ClassExistenceChecker().WithClassName(s.className).Do(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to check class %s: %w", types.ErrStore, s.className, err)
	}
	if exists {
		if err := s.client.Schema().ClassDeleter().WithClassName(s.className).Do(ctx); err != nil {
			return fmt.Errorf("%w: failed to delete class %s: %w", types.ErrStore, s.className, err)
		}
	}
	if err := s.client.Schema().ClassCreator().WithClass(s.classDefinition()).Do(ctx); err != nil {
		return fmt.Errorf("%w: failed to recreate class %s: %w", types.ErrStore, s.className, err)
	}

	s.logger.Info("collection reset", "class", s.className)
	return nil
}

// Count returns the object count of the class
func (s *WeaviateStore) Count(ctx context.Context) (int, error) {
	result, err := s.client.GraphQL().Aggregate().
		WithClassName(s.className).
		WithFields(graphql.Field{Name: "meta", Fields: []graphql.Field{{Name: "count"}}}).
		Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: count: %w", types.ErrStore, err)
	}
	if len(result.Errors) > 0 {
		return 0, fmt.Errorf("%w: count: %s", types.ErrStore, result.Errors[0].Message)
	}

	items := aggregateItems(result.Data, s.className)
	if len(items) == 0 {
		return 0, nil
	}
	meta, _ := items[0]["meta"].(map[string]interface{})
	return intValue(meta["count"]), nil
}

// DeleteSource batch-deletes every object whose source matches
func (s *WeaviateStore) DeleteSource(ctx context.Context, source string) (int, error) {
	if source == "" {
		return 0, fmt.Errorf("%w: %w", types.ErrValidation, types.ErrEmptySource)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	where := filters.Where().
		WithPath([]string{types.FieldSource}).
		WithOperator(filters.Equal).
		WithValueString(source)

	resp, err := s.client.Batch().ObjectsBatchDeleter().
		WithClassName(s.className).
		WithOutput("minimal").
		WithWhere(where).
		Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: delete source %s: %w", types.ErrStore, source, err)
	}
	if resp == nil || resp.Results == nil {
		return 0, nil
	}
	return int(resp.Results.Successful), nil
}

// Close is a no-op; the REST client holds no open resources
func (s *WeaviateStore) Close() error {
	return nil
}

func stringValue(v interface{}) string {
	s, _ := v.(string)
	return s
}

func intValue(v interface{}) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case int64:
		return int(n)
	default:
		return 0
	}
}
