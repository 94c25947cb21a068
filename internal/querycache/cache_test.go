package querycache

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/caldershaw/ragd/internal/model"
)

func TestKeyComposition(t *testing.T) {
	base := Key("docs", 3, []string{"hello"}, nil)
	require.Equal(t, base, Key("docs", 3, []string{"hello"}, nil))
	require.NotEqual(t, base, Key("other", 3, []string{"hello"}, nil))
	require.NotEqual(t, base, Key("docs", 5, []string{"hello"}, nil))
	require.NotEqual(t, base, Key("docs", 3, []string{"goodbye"}, nil))
	require.NotEqual(t, base, Key("docs", 3, []string{"hello"}, map[string]interface{}{"lang": "en"}))
	// two queries must not collide with one concatenated query
	require.NotEqual(t, Key("docs", 3, []string{"ab", "c"}, nil), Key("docs", 3, []string{"a", "bc"}, nil))
}

func TestKeyFilterOrderIndependent(t *testing.T) {
	a := Key("docs", 3, []string{"q"}, map[string]interface{}{"x": 1, "y": 2})
	b := Key("docs", 3, []string{"q"}, map[string]interface{}{"y": 2, "x": 1})
	require.Equal(t, a, b)
}

func TestGetPutClear(t *testing.T) {
	c := New(10, time.Minute)
	key := Key("docs", 3, []string{"q"}, nil)

	_, ok := c.Get(key)
	require.False(t, ok)

	c.Put(key, []model.RetrievedSnippet{{DocumentID: "d1", Content: "text"}})
	got, ok := c.Get(key)
	require.True(t, ok)
	require.Len(t, got, 1)
	require.Equal(t, "d1", got[0].DocumentID)

	c.Clear()
	_, ok = c.Get(key)
	require.False(t, ok)
	require.Zero(t, c.Len())
}

func TestGetReturnsCopy(t *testing.T) {
	c := New(10, time.Minute)
	key := Key("docs", 3, []string{"q"}, nil)
	c.Put(key, []model.RetrievedSnippet{{DocumentID: "d1", Metadata: map[string]interface{}{"k": "v"}}})

	got, ok := c.Get(key)
	require.True(t, ok)
	got[0].DocumentID = "mutated"
	got[0].Metadata["k"] = "mutated"

	again, ok := c.Get(key)
	require.True(t, ok)
	require.Equal(t, "d1", again[0].DocumentID)
	require.Equal(t, "v", again[0].Metadata["k"])
}

func TestCapacityEviction(t *testing.T) {
	c := New(2, time.Minute)
	for i := 0; i < 3; i++ {
		c.Put(Key("docs", 3, []string{fmt.Sprintf("q%d", i)}, nil), nil)
	}
	require.Equal(t, 2, c.Len())
	_, ok := c.Get(Key("docs", 3, []string{"q0"}, nil))
	require.False(t, ok)
	_, ok = c.Get(Key("docs", 3, []string{"q2"}, nil))
	require.True(t, ok)
}
