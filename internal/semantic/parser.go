package semantic

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefinitionFile is the decoded content of one YAML definition file. A file
// may declare any number of semantic models and metrics.
type DefinitionFile struct {
	SemanticModels []Model  `yaml:"semantic_models"`
	Metrics        []Metric `yaml:"metrics"`

	// Path of the source file, set by the loader.
	Path string `yaml:"-"`
}

// ParseFile reads and decodes a single definition file. A file that decodes
// cleanly but contains no semantic models yields a NoModelsError; the caller
// treats this as fatal for the file but not for sibling files.
func ParseFile(path string) (*DefinitionFile, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read definition file: %w", err)
	}
	return Parse(content, path)
}

// fieldNotFoundPattern extracts field names from the decoder's strict-mode
// unmarshal errors.
var fieldNotFoundPattern = regexp.MustCompile(`field (\S+) not found`)

// Parse decodes definition content. Decoding is strict: keys that match no
// known field are an error, so a typoed key surfaces instead of being
// silently dropped. The path is attached to the result and to every model
// for later entity resolution.
func Parse(content []byte, path string) (*DefinitionFile, error) {
	var def DefinitionFile
	dec := yaml.NewDecoder(bytes.NewReader(content))
	dec.KnownFields(true)
	if err := dec.Decode(&def); err != nil && !errors.Is(err, io.EOF) {
		if matches := fieldNotFoundPattern.FindAllStringSubmatch(err.Error(), -1); len(matches) > 0 {
			fields := make([]string, 0, len(matches))
			for _, m := range matches {
				fields = append(fields, m[1])
			}
			return nil, &UnknownFieldError{File: path, Fields: fields}
		}
		return nil, &ParseError{File: path, Message: fmt.Sprintf("invalid YAML: %v", err)}
	}

	if len(def.SemanticModels) == 0 {
		return nil, &NoModelsError{File: path}
	}

	def.Path = path
	for i := range def.SemanticModels {
		def.SemanticModels[i].File = path
	}

	for i, m := range def.SemanticModels {
		if err := validateModel(&m); err != nil {
			return nil, &ParseError{File: path, Message: fmt.Sprintf("model %d (%s): %v", i, m.Name, err)}
		}
	}
	for _, mt := range def.Metrics {
		if err := validateMetric(&mt); err != nil {
			return nil, &ParseError{File: path, Message: fmt.Sprintf("metric %s: %v", mt.Name, err)}
		}
	}

	return &def, nil
}

func validateModel(m *Model) error {
	if m.Name == "" {
		return fmt.Errorf("model name is required")
	}
	for _, e := range m.Entities {
		switch e.Type {
		case EntityPrimary, EntityForeign, EntityUnique:
		default:
			return fmt.Errorf("entity %q: unknown type %q", e.Name, e.Type)
		}
	}
	return nil
}

func validateMetric(mt *Metric) error {
	if mt.Name == "" {
		return fmt.Errorf("metric name is required")
	}
	switch mt.Type {
	case MetricSimple:
		if mt.TypeParams.Measure == nil || mt.TypeParams.Measure.Name == "" {
			return fmt.Errorf("simple metric requires a measure")
		}
	case MetricDerived:
		if mt.TypeParams.Expr == "" {
			return fmt.Errorf("derived metric requires an expr")
		}
	case MetricRatio:
		if mt.TypeParams.Numerator == nil || mt.TypeParams.Denominator == nil {
			return fmt.Errorf("ratio metric requires numerator and denominator")
		}
	default:
		return fmt.Errorf("unknown metric type %q", mt.Type)
	}
	return nil
}

// ParseError represents a definition-file parsing error.
type ParseError struct {
	File    string
	Message string
}

func (e *ParseError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("%s: %s", e.File, e.Message)
	}
	return e.Message
}

// UnknownFieldError reports definition keys that match no known field.
type UnknownFieldError struct {
	File   string
	Fields []string
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("%s: unknown field(s): %s", e.File, strings.Join(e.Fields, ", "))
}

// NoModelsError indicates a definition file declaring no semantic models.
type NoModelsError struct {
	File string
}

func (e *NoModelsError) Error() string {
	return fmt.Sprintf("%s: no semantic models found", e.File)
}
