package benchmarkset

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apiextensionsv1 "k8s.io/apiextensions-apiserver/pkg/apis/apiextensions/v1"
)

func TestMergeSpec_DictsMergeKeyWise(t *testing.T) {
	template := rawJSON(t, map[string]any{
		"client": map[string]any{"image": "fio:latest", "cpu": "2"},
	})
	values := map[string]apiextensionsv1.JSON{
		"client": rawJSON(t, map[string]any{"cpu": "4"}),
	}

	merged, err := MergeSpec(template, values)
	require.NoError(t, err)

	var got map[string]any
	decode(t, merged, &got)
	client := got["client"].(map[string]any)
	assert.Equal(t, "fio:latest", client["image"])
	assert.Equal(t, "4", client["cpu"])
}

func TestMergeSpec_SlicesConcatenate(t *testing.T) {
	template := rawJSON(t, map[string]any{"args": []any{"-a"}})
	values := map[string]apiextensionsv1.JSON{
		"args": rawJSON(t, []any{"-b"}),
	}

	merged, err := MergeSpec(template, values)
	require.NoError(t, err)

	var got map[string]any
	decode(t, merged, &got)
	assert.Equal(t, []any{"-a", "-b"}, got["args"])
}

func TestMergeSpec_ScalarOverrides(t *testing.T) {
	template := rawJSON(t, map[string]any{"streams": 1})
	values := map[string]apiextensionsv1.JSON{
		"streams": rawJSON(t, 4),
	}

	merged, err := MergeSpec(template, values)
	require.NoError(t, err)

	var got map[string]any
	decode(t, merged, &got)
	assert.Equal(t, 4.0, got["streams"])
}

func TestMergeSpec_TypeMismatchFallsBackToOverride(t *testing.T) {
	template := rawJSON(t, map[string]any{"duration": map[string]any{"seconds": 5}})
	values := map[string]apiextensionsv1.JSON{
		"duration": rawJSON(t, 10),
	}

	merged, err := MergeSpec(template, values)
	require.NoError(t, err)

	var got map[string]any
	decode(t, merged, &got)
	assert.Equal(t, 10.0, got["duration"])
}

func TestMergeSpec_NoOverridesReturnsTemplateUnchanged(t *testing.T) {
	template := rawJSON(t, map[string]any{"streams": 1})

	merged, err := MergeSpec(template, nil)
	require.NoError(t, err)

	var got map[string]any
	decode(t, merged, &got)
	assert.Equal(t, 1.0, got["streams"])
}

func TestMergeSpec_InvalidTemplateJSONErrors(t *testing.T) {
	_, err := MergeSpec(apiextensionsv1.JSON{Raw: []byte("not json")}, nil)
	require.Error(t, err)
}

func TestMergeSpec_InvalidOverrideJSONErrors(t *testing.T) {
	template := rawJSON(t, map[string]any{"streams": 1})
	values := map[string]apiextensionsv1.JSON{"streams": {Raw: []byte("not json")}}

	_, err := MergeSpec(template, values)
	require.Error(t, err)
}

func decode(t *testing.T, raw apiextensionsv1.JSON, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(raw.Raw, out))
}
