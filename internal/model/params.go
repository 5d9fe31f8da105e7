// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"maps"
	"slices"
)

// Parameters holds provider request parameters keyed by their wire name.
// A nil value means "unset" and is never sent.
type Parameters map[string]any

// KnownParameters lists the parameter names the engine recognises.
var KnownParameters = []string{
	"temperature",
	"top_p",
	"top_k",
	"min_p",
	"top_a",
	"frequency_penalty",
	"presence_penalty",
	"repetition_penalty",
	"max_tokens",
	"seed",
	"logit_bias",
	"logprobs",
	"top_logprobs",
	"response_format",
	"structured_outputs",
	"stop",
	"tools",
	"tool_choice",
	"parallel_tool_calls",
	"include_reasoning",
	"reasoning",
	"web_search_options",
	"verbosity",
}

// IsKnownParameter reports whether name is a recognised parameter.
func IsKnownParameter(name string) bool {
	return slices.Contains(KnownParameters, name)
}

// MergeParameters layers overrides on top of defaults. Overrides win, nil
// values are dropped from the result, and neither input is modified.
func MergeParameters(defaults, overrides Parameters) Parameters {
	out := make(Parameters, len(defaults)+len(overrides))
	maps.Copy(out, defaults)
	for k, v := range overrides {
		if v == nil {
			delete(out, k)
			continue
		}
		out[k] = v
	}
	maps.DeleteFunc(out, func(_ string, v any) bool { return v == nil })
	return out
}

// Float returns the parameter as a float64 if it holds any numeric type.
func (p Parameters) Float(name string) (float64, bool) {
	switch v := p[name].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

// Int returns the parameter as an int if it holds a whole number.
func (p Parameters) Int(name string) (int, bool) {
	f, ok := p.Float(name)
	if !ok || f != float64(int(f)) {
		return 0, false
	}
	return int(f), true
}

// Strings returns the parameter as a string list. A single string is
// returned as a one-element list.
func (p Parameters) Strings(name string) ([]string, bool) {
	switch v := p[name].(type) {
	case string:
		return []string{v}, true
	case []string:
		return v, true
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}
