package template

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"text/template"

	"github.com/drumato/osle-sdk/config"
	"gopkg.in/yaml.v3"
)

// Renderer expands an osle manifest written as a text/template.
type Renderer struct {
	logger     *slog.Logger
	fileReader config.FileReader
}

// Data is what a manifest template sees. Values from the values file are under .Var.
type Data struct {
	Var map[string]interface{}
}

type Option func(*Renderer)

func WithFileReader(fr config.FileReader) Option {
	return func(r *Renderer) {
		r.fileReader = fr
	}
}

func New(logger *slog.Logger, opts ...Option) *Renderer {
	r := Renderer{
		logger:     logger,
		fileReader: &config.DefaultFileReader{},
	}
	for _, opt := range opts {
		opt(&r)
	}
	return &r
}

// Render reads the manifest from m and executes it with the values at valuesPath.
// A key the values file does not define is an error.
func (r *Renderer) Render(m io.Reader, valuesPath string) ([]byte, error) {
	manifest, err := io.ReadAll(m)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	vars, err := r.loadValues(valuesPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load values from %s: %w", valuesPath, err)
	}

	tmpl, err := template.New("manifest").
		Option("missingkey=error").
		Funcs(template.FuncMap{"upper": strings.ToUpper, "lower": strings.ToLower}).
		Parse(string(manifest))
	if err != nil {
		return nil, fmt.Errorf("failed to parse manifest template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, Data{Var: vars}); err != nil {
		return nil, fmt.Errorf("failed to render manifest: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *Renderer) loadValues(valuesPath string) (map[string]interface{}, error) {
	content, err := r.fileReader.ReadFile(valuesPath)
	if err != nil {
		return nil, err
	}

	vars := map[string]interface{}{}
	if err := yaml.Unmarshal(content, &vars); err != nil {
		return nil, fmt.Errorf("values file is not a YAML mapping: %w", err)
	}
	r.logger.Debug("loaded template values", "valuesPath", valuesPath, "count", len(vars))
	return vars, nil
}

// HasTemplateVars reports whether manifest contains template actions.
func HasTemplateVars(manifest []byte) bool {
	i := bytes.Index(manifest, []byte("{{"))
	return i >= 0 && bytes.Contains(manifest[i:], []byte("}}"))
}
