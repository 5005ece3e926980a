// Copyright (c) 2025 pk910
// SPDX-License-Identifier: Apache-2.0
// This file is part of the dynamic-scale library.

package dynscale

import (
	"fmt"

	"github.com/casbin/govaluate"
)

type cachedProperty struct {
	resolved bool
	value    uint64
}

// propertyValue evaluates a chain property expression from an array length
// ("MAX_NOMINATIONS", "SESSION_KEYS * 32", ...) against the decoder's
// property map. Results are cached including unresolved misses.
func (d *Decoder) propertyValue(name string) (bool, uint64, error) {
	d.propertyMutex.Lock()
	defer d.propertyMutex.Unlock()

	if cachedValue := d.propertyCache[name]; cachedValue != nil {
		return cachedValue.resolved, cachedValue.value, nil
	}

	cachedValue := &cachedProperty{}
	expression, err := govaluate.NewEvaluableExpression(name)
	if err != nil {
		return false, 0, fmt.Errorf("error parsing chain property expression: %v", err)
	}

	result, err := expression.Evaluate(d.properties)
	if err == nil {
		value, ok := result.(float64)
		if ok && value >= 0 {
			cachedValue.resolved = true
			cachedValue.value = uint64(value)
		}
	}

	d.propertyCache[name] = cachedValue
	return cachedValue.resolved, cachedValue.value, nil
}
