package gremlin

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnwrap(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want any
	}{
		{"plain string", `"abc"`, "abc"},
		{"plain integer", `42`, int64(42)},
		{"plain float", `1.5`, 1.5},
		{"int32", `{"@type":"g:Int32","@value":7}`, int64(7)},
		{"int64", `{"@type":"g:Int64","@value":9007199254740993}`, int64(9007199254740993)},
		{"double", `{"@type":"g:Double","@value":0.25}`, 0.25},
		{"uuid", `{"@type":"g:UUID","@value":"41d2e28a-20a4-4ab0-b379-d810dede3786"}`, "41d2e28a-20a4-4ab0-b379-d810dede3786"},
		{"date", `{"@type":"g:Date","@value":1700000000123}`, time.UnixMilli(1700000000123).UTC()},
		{"list", `{"@type":"g:List","@value":["a",{"@type":"g:Int32","@value":1}]}`, []any{"a", int64(1)}},
		{"set", `{"@type":"g:Set","@value":["a"]}`, []any{"a"}},
		{
			"map",
			`{"@type":"g:Map","@value":["pid","p-1",{"@type":"g:Int32","@value":3},"three"]}`,
			map[any]any{"pid": "p-1", int64(3): "three"},
		},
		{
			"vertex",
			`{"@type":"g:Vertex","@value":{"id":"u-1","label":"transientId"}}`,
			Element{ID: "u-1", Label: "transientId"},
		},
		{
			"vertex property",
			`{"@type":"g:VertexProperty","@value":{"id":1,"label":"uid","value":"u-9"}}`,
			"u-9",
		},
		{
			"path",
			`{"@type":"g:Path","@value":{"labels":{"@type":"g:List","@value":[]},"objects":{"@type":"g:List","@value":["u-1",{"@type":"g:Date","@value":0},"site"]}}}`,
			[]any{"u-1", time.UnixMilli(0).UTC(), "site"},
		},
		{"untyped object", `{"a":{"@type":"g:Int64","@value":5}}`, map[string]any{"a": int64(5)}},
		{"null", `null`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Unwrap([]byte(tt.doc))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUnwrapMapWithListKey(t *testing.T) {
	got, err := Unwrap([]byte(`{"@type":"g:Map","@value":[{"@type":"g:List","@value":["a"]},1]}`))
	require.NoError(t, err)
	assert.Equal(t, map[any]any{"[a]": int64(1)}, got)
}

func TestUnwrapRejectsMalformed(t *testing.T) {
	for _, doc := range []string{
		`{"@type":"g:Map","@value":["odd"]}`,
		`{"@type":"g:List","@value":"nope"}`,
		`{"@type":"g:Int32","@value":"7"}`,
		`{"@type":"g:Vertex","@value":[]}`,
		`{`,
	} {
		_, err := Unwrap([]byte(doc))
		assert.Error(t, err, doc)
	}
}

func TestTypedBindingsMarshal(t *testing.T) {
	at := time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)
	data, err := json.Marshal(map[string]any{"since": Date(at), "n": Int32(4), "m": Int64(5)})
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"since":{"@type":"g:Date","@value":1577934245000},"n":{"@type":"g:Int32","@value":4},"m":{"@type":"g:Int64","@value":5}}`,
		string(data))
}

func TestServerErrorMessage(t *testing.T) {
	err := &ServerError{Code: 597, Message: "boom"}
	assert.Equal(t, "gremlin: server returned 597: boom", err.Error())
}
