package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"

	rexerrors "github.com/pelagornis/go-rex/pkg/rex/v1/errors"
)

// SupportedSchemaVersionConstraint is the major schemaVersion accepted by
// this runtime.
const SupportedSchemaVersionConstraint = "v1"

// LoadScenario parses scenario YAML bytes, validates them against the
// embedded JSON schema, checks schema version compatibility, performs
// logical validation, and assigns internal step IDs.
func LoadScenario(scenarioYAML []byte, filePathHint string) (*Scenario, error) {
	if len(scenarioYAML) == 0 {
		return nil, rexerrors.NewConfigError("scenario content cannot be empty", nil)
	}

	if err := ValidateWithSchema(scenarioYAML); err != nil {
		return nil, rexerrors.NewConfigError(fmt.Sprintf("scenario '%s' failed schema validation", filePathHint), err)
	}

	var scenario Scenario
	if err := yamlUnmarshalStrict(scenarioYAML, &scenario); err != nil {
		return nil, rexerrors.NewConfigError(fmt.Sprintf("failed to parse scenario YAML '%s'", filePathHint), err)
	}
	scenario.FilePath = filePathHint

	if scenario.SchemaVersion == "" {
		return nil, rexerrors.NewValidationError(fmt.Sprintf("scenario '%s' is missing required 'schemaVersion' field", filePathHint), nil)
	}
	scenarioSemVer := scenario.SchemaVersion
	if !strings.HasPrefix(scenarioSemVer, "v") {
		scenarioSemVer = "v" + scenarioSemVer
	}
	if !semver.IsValid(scenarioSemVer) {
		return nil, rexerrors.NewValidationError(fmt.Sprintf("scenario '%s' has invalid 'schemaVersion' format: '%s'", filePathHint, scenario.SchemaVersion), nil)
	}
	if semver.Major(scenarioSemVer) != SupportedSchemaVersionConstraint {
		return nil, rexerrors.NewValidationError(
			fmt.Sprintf("scenario '%s' schemaVersion '%s' is not compatible with runtime requirement '%s'",
				filePathHint, scenario.SchemaVersion, SupportedSchemaVersionConstraint),
			nil,
		)
	}

	validationErrs := ValidateScenarioStructure(&scenario)
	if len(validationErrs) > 0 {
		var errorMessages []string
		for _, vErr := range validationErrs {
			errorMessages = append(errorMessages, vErr.Error())
		}
		combinedMessage := fmt.Sprintf("scenario '%s' has %d validation error(s):\n- %s",
			filePathHint, len(errorMessages), strings.Join(errorMessages, "\n- "))
		return nil, rexerrors.NewValidationError(combinedMessage, validationErrs[0])
	}

	assignInternalStepIDs(&scenario)
	return &scenario, nil
}

// LoadScenarioFromFile reads a scenario from disk.
func LoadScenarioFromFile(filePath string) (*Scenario, error) {
	if filePath == "" {
		return nil, rexerrors.NewConfigError("scenario file path cannot be empty", nil)
	}
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return nil, rexerrors.NewConfigError(fmt.Sprintf("failed to get absolute path for '%s'", filePath), err)
	}
	yamlFile, err := os.ReadFile(absPath)
	if err != nil {
		return nil, rexerrors.NewConfigError(fmt.Sprintf("failed to read scenario file '%s'", absPath), err)
	}
	return LoadScenario(yamlFile, absPath)
}

// assignInternalStepIDs gives every step a stable identifier for logs and
// the run report, preferring the user-defined name.
func assignInternalStepIDs(scenario *Scenario) {
	for i := range scenario.Steps {
		step := &scenario.Steps[i]
		if step.Name != "" {
			step.InternalID = step.Name
		} else {
			step.InternalID = fmt.Sprintf("__step_idx_%d", i)
		}
	}
}

// yamlUnmarshalStrict decodes YAML rejecting unknown fields, so typos in
// scenario files surface as load errors instead of silent no-ops.
func yamlUnmarshalStrict(in []byte, out interface{}) error {
	decoder := yaml.NewDecoder(strings.NewReader(string(in)))
	decoder.KnownFields(true)
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("YAML parsing error: %w", err)
	}
	return nil
}
