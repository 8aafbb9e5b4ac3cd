package cache

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// keyPrefix namespaces every cache key. It matters for the Redis store where
// the keyspace may be shared.
const keyPrefix = "todo"

// CacheKey identifies a cached response by the request that produced it.
type CacheKey struct {
	// Endpoint is the request path (e.g., "/todos")
	Endpoint string

	// QueryParams are the query parameters (e.g., {"_page": "2"})
	QueryParams url.Values
}

// String generates a deterministic cache key string.
// Format: todo:endpoint:query1=val1:query2=val2
//
// Example:
//
//	todo:todos:_limit=4:_order=desc:_page=1:_sort=id
func (k CacheKey) String() string {
	parts := []string{keyPrefix}

	endpoint := strings.Trim(k.Endpoint, "/")
	if endpoint != "" {
		parts = append(parts, endpoint)
	}

	// Sorted for determinism; multi-valued params keep all values
	if len(k.QueryParams) > 0 {
		queryKeys := make([]string, 0, len(k.QueryParams))
		for key := range k.QueryParams {
			queryKeys = append(queryKeys, key)
		}
		sort.Strings(queryKeys)

		for _, key := range queryKeys {
			values := append([]string(nil), k.QueryParams[key]...)
			sort.Strings(values)
			parts = append(parts, fmt.Sprintf("%s=%s", key, strings.Join(values, ",")))
		}
	}

	return strings.Join(parts, ":")
}

// tagKey is the Redis sorted set holding the member keys of a tag.
func tagKey(tag string) string {
	return keyPrefix + ":tag:" + tag
}
