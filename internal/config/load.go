package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"

	jherrors "github.com/jobhunter-labs/jobhunter/pkg/jobhunter/v1/errors"
)

// SupportedSchemaVersionMajor is the pipeline schema major version this
// build understands.
const SupportedSchemaVersionMajor = "v1"

// LoadPipeline parses a pipeline definition. The document is validated
// against the embedded JSON schema, decoded strictly, version checked and
// finally validated logically; all logical problems are reported together.
func LoadPipeline(pipelineYAML []byte, filePathHint string) (*Pipeline, error) {
	if len(bytes.TrimSpace(pipelineYAML)) == 0 {
		return nil, jherrors.NewConfigError("pipeline content cannot be empty", nil)
	}

	if err := ValidateWithSchema(pipelineYAML); err != nil {
		return nil, jherrors.NewConfigError(fmt.Sprintf("pipeline '%s' failed schema validation", filePathHint), err)
	}

	var p Pipeline
	if err := yamlUnmarshalStrict(pipelineYAML, &p); err != nil {
		return nil, jherrors.NewConfigError(fmt.Sprintf("failed to parse pipeline YAML '%s'", filePathHint), err)
	}
	p.FilePath = filePathHint

	if err := checkSchemaVersion(p.SchemaVersion, filePathHint); err != nil {
		return nil, err
	}

	if errs := ValidatePipelineStructure(&p); len(errs) > 0 {
		msgs := make([]string, 0, len(errs))
		for _, e := range errs {
			msgs = append(msgs, e.Error())
		}
		combined := fmt.Sprintf("pipeline '%s' has %d validation error(s):\n- %s",
			filePathHint, len(msgs), strings.Join(msgs, "\n- "))
		return nil, jherrors.NewValidationError(combined, errs[0])
	}

	return &p, nil
}

// LoadPipelineFromFile reads and loads a pipeline definition from disk.
func LoadPipelineFromFile(filePath string) (*Pipeline, error) {
	if filePath == "" {
		return nil, jherrors.NewConfigError("pipeline file path cannot be empty", nil)
	}
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return nil, jherrors.NewConfigError(fmt.Sprintf("failed to get absolute path for '%s'", filePath), err)
	}
	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, jherrors.NewConfigError(fmt.Sprintf("failed to read pipeline file '%s'", absPath), err)
	}
	return LoadPipeline(data, absPath)
}

func checkSchemaVersion(version, hint string) error {
	if version == "" {
		return jherrors.NewValidationError(fmt.Sprintf("pipeline '%s' is missing required 'schemaVersion' field", hint), nil)
	}
	v := version
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return jherrors.NewValidationError(fmt.Sprintf("pipeline '%s' has invalid 'schemaVersion' format: '%s'", hint, version), nil)
	}
	if semver.Major(v) != SupportedSchemaVersionMajor {
		return jherrors.NewValidationError(
			fmt.Sprintf("pipeline '%s' schemaVersion '%s' is not compatible with required major version '%s'",
				hint, version, SupportedSchemaVersionMajor), nil)
	}
	return nil
}

// yamlUnmarshalStrict rejects fields that Pipeline does not define.
func yamlUnmarshalStrict(in []byte, out interface{}) error {
	decoder := yaml.NewDecoder(bytes.NewReader(in))
	decoder.KnownFields(true)
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("YAML parsing error: %w", err)
	}
	return nil
}
