package querycache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/caldershaw/ragd/internal/model"
)

// Cache memoizes retrieval results keyed by the full query shape. Entries
// expire after the configured TTL and the oldest entries are evicted once
// capacity is reached.
type Cache struct {
	lru *expirable.LRU[string, []model.RetrievedSnippet]
}

func New(size int, ttl time.Duration) *Cache {
	if size <= 0 {
		size = 100
	}
	return &Cache{
		lru: expirable.NewLRU[string, []model.RetrievedSnippet](size, nil, ttl),
	}
}

// Key derives a stable cache key from everything that affects the result
// set. Filters are serialized with sorted keys so equivalent maps collide.
func Key(collection string, topK int, queryTexts []string, filters map[string]interface{}) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%d|", collection, topK)
	for _, q := range queryTexts {
		fmt.Fprintf(h, "%d:%s|", len(q), q)
	}
	if len(filters) > 0 {
		keys := make([]string, 0, len(filters))
		for k := range filters {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var sb strings.Builder
		for _, k := range keys {
			blob, _ := json.Marshal(filters[k])
			sb.WriteString(k)
			sb.WriteByte('=')
			sb.Write(blob)
			sb.WriteByte(';')
		}
		h.Write([]byte(sb.String()))
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (c *Cache) Get(key string) ([]model.RetrievedSnippet, bool) {
	snippets, ok := c.lru.Get(key)
	if !ok {
		return nil, false
	}
	return cloneSnippets(snippets), true
}

func (c *Cache) Put(key string, snippets []model.RetrievedSnippet) {
	c.lru.Add(key, cloneSnippets(snippets))
}

func (c *Cache) Clear() {
	c.lru.Purge()
}

func (c *Cache) Len() int {
	return c.lru.Len()
}

// cloneSnippets guards cached entries against caller mutation.
func cloneSnippets(in []model.RetrievedSnippet) []model.RetrievedSnippet {
	out := make([]model.RetrievedSnippet, len(in))
	copy(out, in)
	for i := range out {
		if len(in[i].Metadata) > 0 {
			meta := make(map[string]interface{}, len(in[i].Metadata))
			for k, v := range in[i].Metadata {
				meta[k] = v
			}
			out[i].Metadata = meta
		}
	}
	return out
}
