package cache

import (
	"fmt"

	"github.com/mitchellh/hashstructure/v2"
)

// Key derives a deterministic cache key from a namespace and a parameter
// structure. Structurally equal params yield the same key regardless of map
// iteration order. Keys have the form "namespace:<hash>", so Invalidate(namespace)
// drops every key of the namespace.
func Key(namespace string, params any) (string, error) {
	if params == nil {
		return namespace + ":", nil
	}
	h, err := hashstructure.Hash(params, hashstructure.FormatV2, nil)
	if err != nil {
		return "", fmt.Errorf("hash %s params: %w", namespace, err)
	}
	return fmt.Sprintf("%s:%016x", namespace, h), nil
}
