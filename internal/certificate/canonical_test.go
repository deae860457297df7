package certificate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalJSONSortsKeys(t *testing.T) {
	out, err := CanonicalJSON(map[string]interface{}{
		"zebra": 1,
		"alpha": 2,
		"mid":   3,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":2,"mid":3,"zebra":1}`, string(out))
}

func TestCanonicalJSONNested(t *testing.T) {
	out, err := CanonicalJSON(map[string]interface{}{
		"b": map[string]interface{}{"y": "2", "x": "1"},
		"a": []interface{}{map[string]interface{}{"k2": 2, "k1": 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"a":[{"k1":1,"k2":2}],"b":{"x":"1","y":"2"}}`, string(out))
}

func TestCanonicalJSONStructFieldOrder(t *testing.T) {
	type doc struct {
		Second string `json:"second"`
		First  string `json:"first"`
	}

	out, err := CanonicalJSON(doc{Second: "b", First: "a"})
	require.NoError(t, err)
	assert.Equal(t, `{"first":"a","second":"b"}`, string(out))
}

func TestCanonicalJSONDeterministic(t *testing.T) {
	v := map[string]interface{}{
		"device": map[string]interface{}{"path": "/dev/sda", "size": 1024},
		"method": "three_pass",
		"list":   []interface{}{"a", "b"},
	}

	first, err := CanonicalJSON(v)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		next, err := CanonicalJSON(v)
		require.NoError(t, err)
		assert.Equal(t, first, next)
	}
}

func TestCanonicalJSONNoHTMLEscape(t *testing.T) {
	out, err := CanonicalJSON(map[string]interface{}{"op": "a<b&c>d"})
	require.NoError(t, err)
	assert.Equal(t, `{"op":"a<b&c>d"}`, string(out))
}

func TestCanonicalJSONScalars(t *testing.T) {
	out, err := CanonicalJSON(map[string]interface{}{
		"b": true, "n": nil, "f": 1.5, "i": 42, "s": "x",
	})
	require.NoError(t, err)
	assert.Equal(t, `{"b":true,"f":1.5,"i":42,"n":null,"s":"x"}`, string(out))
}
