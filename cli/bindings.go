package cli

import (
	"fmt"
	"strings"

	"github.com/voltsweep/voltsweep/core/method"
)

// resolveBindings layers --set overrides over a method's input defaults.
// Each override is VAR=VALUE; the first '=' splits, so values may contain
// further '=' characters.
func resolveBindings(def *method.Definition, sets []string) (method.MapBindings, error) {
	bindings := def.DefaultBindings()

	for _, set := range sets {
		eq := strings.IndexByte(set, '=')
		if eq <= 0 {
			return nil, fmt.Errorf("invalid --set %q: expected VAR=VALUE", set)
		}
		name := strings.TrimSpace(set[:eq])
		value := strings.TrimSpace(set[eq+1:])

		if _, known := def.InputFor(method.Symbol(name)); !known {
			return nil, fmt.Errorf("method %q has no input %q", def.Name, name)
		}
		bindings[method.Symbol(name)] = value
	}
	return bindings, nil
}
