// Package searcher answers natural-language questions against the index store.
//
// Search embeds the query text with the configured embedder and asks the store
// for the nearest chunks by cosine distance. Query goes one step further and
// assembles a citation-annotated context block:
//
//	[1] first excerpt
//
//	[2] second excerpt
//
// together with one Source per distinct (source, page) pair, in rank order.
//
// # Basic Usage
//
//	s := searcher.NewSearcher(store, emb, searcher.Options{})
//
//	rc, err := s.Query(ctx, searcher.SearchRequest{
//	    Query: "what was the revenue growth in 2023?",
//	    TopK:  5,
//	})
//	for _, src := range rc.Sources {
//	    fmt.Printf("%s p.%d\n", src.Source, src.Page)
//	}
//
// # Relevance Scores
//
// Sources carry 1 - distance clamped to [0, 1]. Cosine distance ranges over
// [0, 2], so the score is a ranking aid only.
//
// # Caching
//
// Search responses are kept in an LRU cache with a TTL, keyed by query text,
// top_k and filter. Callers that modify the store purge it with InvalidateCache.
package searcher
