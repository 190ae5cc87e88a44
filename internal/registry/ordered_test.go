package registry

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestOrderedMapSetKeepsPosition(t *testing.T) {
	t.Parallel()

	m := NewOrderedMap[int]()
	m.Set("b:b", 1)
	m.Set("a:a", 2)
	m.Set("b:b", 3)

	assert.Equal(t, []Key{"b:b", "a:a"}, m.Keys())
	assert.Equal(t, []int{3, 2}, m.Values())
	v, ok := m.Get("b:b")
	assert.True(t, ok)
	assert.Equal(t, 3, v)
	assert.False(t, m.Has("c:c"))
	assert.Equal(t, 2, m.Len())
}

func TestOrderedMapNilSafe(t *testing.T) {
	t.Parallel()

	var m *OrderedMap[int]
	assert.Equal(t, 0, m.Len())
	assert.False(t, m.Has("a:a"))
	assert.Nil(t, m.Keys())
	for range m.All() {
		t.Fatal("nil map must not yield")
	}
	data, err := m.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, "null", string(data))

	var zero OrderedMap[int]
	zero.Set("a:a", 1)
	assert.Equal(t, 1, zero.Len())
}

func TestOrderedMapJSONDocumentOrder(t *testing.T) {
	t.Parallel()

	doc := `{"z:z":{"version":"1"},"a:a":{"version":"2"},"m:m":{"version":"3"}}`
	m := NewOrderedMap[*TestResult]()
	require.NoError(t, json.Unmarshal([]byte(doc), m))

	assert.Equal(t, []Key{"z:z", "a:a", "m:m"}, m.Keys())

	out, err := json.Marshal(m)
	require.NoError(t, err)
	assert.Less(t, strings.Index(string(out), `"z:z"`), strings.Index(string(out), `"a:a"`))
	assert.Less(t, strings.Index(string(out), `"a:a"`), strings.Index(string(out), `"m:m"`))
}

func TestOrderedMapJSONErrors(t *testing.T) {
	t.Parallel()

	m := NewOrderedMap[int]()
	assert.Error(t, json.Unmarshal([]byte(`[1,2]`), m))
	assert.Error(t, json.Unmarshal([]byte(`{"a:a":"x"}`), m))

	require.NoError(t, json.Unmarshal([]byte(`null`), m))
	assert.Equal(t, 0, m.Len())
}

func TestOrderedMapNoHTMLEscape(t *testing.T) {
	t.Parallel()

	m := NewOrderedMap[string]()
	m.Set("a:a", "<b>&</b>")
	out, err := json.Marshal(m)
	require.NoError(t, err)
	assert.Equal(t, `{"a:a":"<b>&</b>"}`, string(out))
}

func TestOrderedMapRoundTripProperty(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 20).Draw(t, "size")
		m := NewOrderedMap[int]()
		for i := 0; i < n; i++ {
			key := Key(fmt.Sprintf("%s:%d", rapid.StringMatching(`[a-z]{1,6}`).Draw(t, "project"), i))
			m.Set(key, rapid.Int().Draw(t, "value"))
		}

		data, err := json.Marshal(m)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		decoded := NewOrderedMap[int]()
		if err := json.Unmarshal(data, decoded); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}

		if fmt.Sprint(decoded.Keys()) != fmt.Sprint(m.Keys()) {
			t.Fatalf("order changed: %v != %v", decoded.Keys(), m.Keys())
		}
		for k, v := range m.All() {
			got, ok := decoded.Get(k)
			if !ok || got != v {
				t.Fatalf("value for %s: got %d, want %d", k, got, v)
			}
		}
	})
}
