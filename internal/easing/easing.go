// Package easing names the easing curves usable from configuration and scripts.
package easing

import (
	"fmt"
	"sort"
	"strings"

	"github.com/fogleman/ease"
)

// Func maps t in [0,1] onto an eased value, nominally in [0,1].
type Func func(t float64) float64

var funcs = map[string]Func{
	"linear":       ease.Linear,
	"in-quad":      ease.InQuad,
	"out-quad":     ease.OutQuad,
	"in-out-quad":  ease.InOutQuad,
	"in-cubic":     ease.InCubic,
	"out-cubic":    ease.OutCubic,
	"in-out-cubic": ease.InOutCubic,
	"in-sine":      ease.InSine,
	"out-sine":     ease.OutSine,
	"in-out-sine":  ease.InOutSine,
}

// Lookup resolves a curve by name; the empty name is linear.
func Lookup(name string) (Func, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return ease.Linear, nil
	}
	fn, ok := funcs[name]
	if !ok {
		return nil, fmt.Errorf("unknown easing %q (known: %s)", name, strings.Join(Names(), ", "))
	}
	return fn, nil
}

func Names() []string {
	names := make([]string, 0, len(funcs))
	for n := range funcs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
