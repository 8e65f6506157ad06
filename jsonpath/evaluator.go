package jsonpath

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/oliveagle/jsonpath"
)

// PathEvaluator evaluates JSONPath expressions against disk listings
type PathEvaluator struct {
	logger *slog.Logger
}

func NewPathEvaluator(logger *slog.Logger) *PathEvaluator {
	return &PathEvaluator{
		logger: logger,
	}
}

// Lookup evaluates path against obj after converting it to its JSON form, so struct
// json tags name the fields
func (pe *PathEvaluator) Lookup(obj interface{}, path string) (interface{}, error) {
	if !strings.HasPrefix(path, "$") {
		return nil, fmt.Errorf("JSONPath %q must start with $", path)
	}

	doc, err := pe.toJSONValue(obj)
	if err != nil {
		return nil, err
	}

	compiled, err := jsonpath.Compile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to compile JSONPath %s: %w", path, err)
	}

	result, err := compiled.Lookup(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate JSONPath %s: %w", path, err)
	}
	pe.logger.Debug("Evaluated path", "path", path)
	return result, nil
}

// toJSONValue converts obj into maps, slices and scalars via JSON marshaling
func (pe *PathEvaluator) toJSONValue(obj interface{}) (interface{}, error) {
	jsonBytes, err := json.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal to JSON: %w", err)
	}

	var result interface{}
	if err := json.Unmarshal(jsonBytes, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON: %w", err)
	}
	return result, nil
}

// Format renders a lookup result: strings bare, everything else as JSON
func Format(v interface{}) (string, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	out, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
