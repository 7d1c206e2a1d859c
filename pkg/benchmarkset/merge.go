package benchmarkset

import (
	"encoding/json"
	"fmt"

	apiextensionsv1 "k8s.io/apiextensions-apiserver/pkg/apis/apiextensions/v1"
)

// MergeSpec applies a child's permutation overrides onto the set's
// template spec via a deep concat merge (spec §4.6 step 4): dicts merge
// key-wise, sequences concatenate, scalars override. The template and the
// permutation values are both arbitrary JSON (apiextensionsv1.JSON), since
// they describe any of the seven benchmark kinds' spec shapes — the
// result is re-encoded as JSON, which the caller decodes into a generic
// map and sets as the spec of an unstructured child object.
func MergeSpec(template apiextensionsv1.JSON, values map[string]apiextensionsv1.JSON) (apiextensionsv1.JSON, error) {
	base := map[string]any{}
	if len(template.Raw) > 0 {
		if err := json.Unmarshal(template.Raw, &base); err != nil {
			return apiextensionsv1.JSON{}, fmt.Errorf("decoding template spec: %w", err)
		}
	}

	override := map[string]any{}
	for k, v := range values {
		var decoded any
		if err := json.Unmarshal(v.Raw, &decoded); err != nil {
			return apiextensionsv1.JSON{}, fmt.Errorf("decoding permutation value %q: %w", k, err)
		}
		override[k] = decoded
	}

	merged := deepConcatMerge(base, override)

	raw, err := json.Marshal(merged)
	if err != nil {
		return apiextensionsv1.JSON{}, fmt.Errorf("encoding merged spec: %w", err)
	}
	return apiextensionsv1.JSON{Raw: raw}, nil
}

// deepConcatMerge merges override onto base: maps merge key-wise
// (recursively), slices concatenate (base elements first), and anything
// else (scalars, or a type mismatch between base and override) takes the
// override value.
func deepConcatMerge(base, override map[string]any) map[string]any {
	result := make(map[string]any, len(base)+len(override))
	for k, v := range base {
		result[k] = v
	}
	for k, overrideVal := range override {
		baseVal, exists := result[k]
		if !exists {
			result[k] = overrideVal
			continue
		}
		result[k] = mergeValue(baseVal, overrideVal)
	}
	return result
}

func mergeValue(base, override any) any {
	if baseMap, ok := base.(map[string]any); ok {
		if overrideMap, ok := override.(map[string]any); ok {
			return deepConcatMerge(baseMap, overrideMap)
		}
		return override
	}
	if baseSlice, ok := base.([]any); ok {
		if overrideSlice, ok := override.([]any); ok {
			merged := make([]any, 0, len(baseSlice)+len(overrideSlice))
			merged = append(merged, baseSlice...)
			merged = append(merged, overrideSlice...)
			return merged
		}
		return override
	}
	return override
}
