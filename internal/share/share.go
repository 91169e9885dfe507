// Package share exports and imports the store as a versioned envelope,
// in JSON or YAML depending on the file extension. Imports are schema-
// validated before anything is merged so a malformed file cannot corrupt
// the store.
package share

import (
	"encoding/json"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/wfkit/wf/internal/errors"
	"github.com/wfkit/wf/internal/model"
	"github.com/wfkit/wf/internal/store"
)

// EnvelopeVersion is written to every export and accepted on import.
const EnvelopeVersion = "1.0"

// Envelope is the interchange document.
type Envelope struct {
	Version   string                     `json:"version"`
	Metadata  Metadata                   `json:"metadata"`
	Commands  map[string]*model.Command  `json:"commands,omitempty"`
	Workflows map[string]*model.Workflow `json:"workflows,omitempty"`
}

// Metadata records provenance of an export.
type Metadata struct {
	ExportedAt  time.Time `json:"exported_at"`
	ExportedBy  string    `json:"exported_by"`
	Description string    `json:"description"`
}

// envelopeSchema is the structural contract an import must satisfy
// before any merging happens.
const envelopeSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["version", "metadata"],
  "properties": {
    "version": {"type": "string"},
    "metadata": {
      "type": "object",
      "required": ["exported_at", "exported_by"],
      "properties": {
        "exported_at": {"type": "string"},
        "exported_by": {"type": "string"},
        "description": {"type": "string"}
      }
    },
    "commands": {
      "type": "object",
      "additionalProperties": {
        "type": "object",
        "required": ["name", "command"]
      }
    },
    "workflows": {
      "type": "object",
      "additionalProperties": {
        "type": "object",
        "required": ["name", "steps"]
      }
    }
  }
}`

// ExportOptions filters what goes into an export.
type ExportOptions struct {
	CommandsOnly bool
	FlowsOnly    bool
	Tag          string
	Description  string
}

// Summary counts what an import did per kind.
type Summary struct {
	CommandsAdded    int
	CommandsUpdated  int
	CommandsSkipped  int
	WorkflowsAdded   int
	WorkflowsUpdated int
	WorkflowsSkipped int
	Metadata         Metadata
}

// Export writes the store (filtered by opts) to path. The extension
// picks the format: .json, .yaml, or .yml.
func Export(s *store.Store, path string, opts ExportOptions) error {
	env := Envelope{
		Version: EnvelopeVersion,
		Metadata: Metadata{
			ExportedAt:  time.Now().UTC(),
			ExportedBy:  currentUser(),
			Description: opts.Description,
		},
	}

	if !opts.FlowsOnly {
		cmds, err := s.ListCommands()
		if err != nil {
			return errors.WrapWithCode(err, errors.ErrExport,
				"Failed to read commands for export", "")
		}
		env.Commands = make(map[string]*model.Command)
		for _, cmd := range cmds {
			if opts.Tag != "" && !cmd.HasTag(opts.Tag) {
				continue
			}
			env.Commands[cmd.Name] = cmd
		}
	}
	if !opts.CommandsOnly {
		flows, err := s.ListWorkflows()
		if err != nil {
			return errors.WrapWithCode(err, errors.ErrExport,
				"Failed to read workflows for export", "")
		}
		env.Workflows = make(map[string]*model.Workflow)
		for _, wf := range flows {
			if opts.Tag != "" && !wf.HasTag(opts.Tag) {
				continue
			}
			env.Workflows[wf.Name] = wf
		}
	}

	data, err := encode(&env, path)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.WrapWithCode(err, errors.ErrExport,
			fmt.Sprintf("Failed to write export file %s", path),
			"Check the target directory exists and is writable")
	}
	return nil
}

// Import reads an envelope from path, validates it, and merges it into
// the store. Existing entries are skipped unless overwrite is set.
func Import(s *store.Store, path string, overwrite bool) (*Summary, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrImport,
			fmt.Sprintf("Failed to read import file %s", path),
			"Check the path is correct")
	}

	jsonDoc, err := toJSON(raw, path)
	if err != nil {
		return nil, err
	}
	if err := validateEnvelope(jsonDoc); err != nil {
		return nil, err
	}

	var env Envelope
	if err := json.Unmarshal(jsonDoc, &env); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrImport,
			"Failed to decode import envelope",
			"The file may have been produced by an incompatible version")
	}

	summary := &Summary{Metadata: env.Metadata}
	for name, cmd := range env.Commands {
		switch {
		case !s.HasCommand(name):
			if err := s.PutCommand(cmd); err != nil {
				return nil, err
			}
			summary.CommandsAdded++
		case overwrite:
			if err := s.PutCommand(cmd); err != nil {
				return nil, err
			}
			summary.CommandsUpdated++
		default:
			summary.CommandsSkipped++
		}
	}
	for name, wf := range env.Workflows {
		switch {
		case !s.HasWorkflow(name):
			if err := s.PutWorkflow(wf); err != nil {
				return nil, err
			}
			summary.WorkflowsAdded++
		case overwrite:
			if err := s.PutWorkflow(wf); err != nil {
				return nil, err
			}
			summary.WorkflowsUpdated++
		default:
			summary.WorkflowsSkipped++
		}
	}
	return summary, nil
}

func validateEnvelope(jsonDoc []byte) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(envelopeSchema),
		gojsonschema.NewBytesLoader(jsonDoc))
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrImport,
			"Failed to validate import file", "")
	}
	if !result.Valid() {
		var details []string
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}
		return errors.New(errors.ErrImport,
			fmt.Sprintf("Import file does not match the expected format: %s",
				strings.Join(details, "; ")),
			"Export files are produced by 'wf export'")
	}
	return nil
}

// encode serializes the envelope in the format the path's extension
// selects. YAML goes through a JSON round trip so the json struct tags
// stay the single source of field names.
func encode(env *Envelope, path string) ([]byte, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		data, err := json.MarshalIndent(env, "", "  ")
		if err != nil {
			return nil, errors.WrapWithCode(err, errors.ErrExport,
				"Failed to encode export", "")
		}
		return data, nil
	case ".yaml", ".yml":
		jsonData, err := json.Marshal(env)
		if err != nil {
			return nil, errors.WrapWithCode(err, errors.ErrExport,
				"Failed to encode export", "")
		}
		var tree map[string]interface{}
		if err := json.Unmarshal(jsonData, &tree); err != nil {
			return nil, errors.WrapWithCode(err, errors.ErrExport,
				"Failed to encode export", "")
		}
		data, err := yaml.Marshal(tree)
		if err != nil {
			return nil, errors.WrapWithCode(err, errors.ErrExport,
				"Failed to encode export as YAML", "")
		}
		return data, nil
	default:
		return nil, errors.New(errors.ErrExport,
			fmt.Sprintf("Unsupported export format %q", filepath.Ext(path)),
			"Use a .json, .yaml, or .yml extension")
	}
}

// toJSON normalizes the raw file to JSON bytes, converting from YAML
// when the extension says so.
func toJSON(raw []byte, path string) ([]byte, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return raw, nil
	case ".yaml", ".yml":
		var tree interface{}
		if err := yaml.Unmarshal(raw, &tree); err != nil {
			return nil, errors.WrapWithCode(err, errors.ErrImport,
				fmt.Sprintf("Import file %s is not valid YAML", path),
				"Check the file for syntax errors")
		}
		data, err := json.Marshal(tree)
		if err != nil {
			return nil, errors.WrapWithCode(err, errors.ErrImport,
				"Failed to convert YAML import to JSON", "")
		}
		return data, nil
	default:
		return nil, errors.New(errors.ErrImport,
			fmt.Sprintf("Unsupported import format %q", filepath.Ext(path)),
			"Use a .json, .yaml, or .yml file")
	}
}

func currentUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	if name := os.Getenv("USER"); name != "" {
		return name
	}
	return "unknown"
}
