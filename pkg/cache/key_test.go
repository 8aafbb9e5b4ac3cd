package cache

import (
	"net/url"
	"testing"
)

func TestCacheKey_String(t *testing.T) {
	tests := []struct {
		name string
		key  CacheKey
		want string
	}{
		{
			name: "simple endpoint no params",
			key: CacheKey{
				Endpoint: "/todos",
			},
			want: "todo:todos",
		},
		{
			name: "endpoint with trailing slash",
			key: CacheKey{
				Endpoint: "/todos/",
			},
			want: "todo:todos",
		},
		{
			name: "list query params (sorted)",
			key: CacheKey{
				Endpoint: "/todos",
				QueryParams: url.Values{
					"_page":  []string{"1"},
					"_limit": []string{"4"},
					"_sort":  []string{"id"},
					"_order": []string{"desc"},
				},
			},
			want: "todo:todos:_limit=4:_order=desc:_page=1:_sort=id",
		},
		{
			name: "multi-valued param",
			key: CacheKey{
				Endpoint: "/todos",
				QueryParams: url.Values{
					"id": []string{"9", "3"},
				},
			},
			want: "todo:todos:id=3,9",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.key.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCacheKey_Deterministic(t *testing.T) {
	a := CacheKey{
		Endpoint:    "/todos",
		QueryParams: url.Values{"_page": []string{"2"}, "_limit": []string{"4"}},
	}
	b := CacheKey{
		Endpoint:    "todos",
		QueryParams: url.Values{"_limit": []string{"4"}, "_page": []string{"2"}},
	}

	for i := 0; i < 10; i++ {
		if a.String() != b.String() {
			t.Fatalf("keys differ: %q vs %q", a.String(), b.String())
		}
	}
}

func TestCacheKey_DifferentPagesDiffer(t *testing.T) {
	p1 := CacheKey{Endpoint: "/todos", QueryParams: url.Values{"_page": []string{"1"}}}
	p2 := CacheKey{Endpoint: "/todos", QueryParams: url.Values{"_page": []string{"2"}}}

	if p1.String() == p2.String() {
		t.Errorf("different pages produced the same key %q", p1.String())
	}
}
