package logging

import "maps"

// cloneFields returns a copy of src; never nil.
func cloneFields(src map[string]interface{}) map[string]interface{} {
	dst := make(map[string]interface{}, len(src))
	maps.Copy(dst, src)
	return dst
}

// mergeFields layers context, persistent and call-site fields (last wins).
// Returns nil when there is nothing to print.
func mergeFields(layers ...map[string]interface{}) map[string]interface{} {
	var merged map[string]interface{}
	for _, layer := range layers {
		if len(layer) == 0 {
			continue
		}
		if merged == nil {
			merged = make(map[string]interface{})
		}
		maps.Copy(merged, layer)
	}
	return merged
}
