// Package store persists commands and workflows in one JSON document
// under the store directory. The file is reloaded only when its
// modification time changes, and writes go through a temp file + rename
// so a crash never leaves a half-written store behind.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	playground "github.com/go-playground/validator/v10"

	"github.com/wfkit/wf/internal/errors"
	"github.com/wfkit/wf/internal/logger"
	"github.com/wfkit/wf/internal/model"
	"github.com/wfkit/wf/internal/util"
)

// FileName is the store document inside the store directory.
const FileName = "commands.json"

type document struct {
	Commands  map[string]*model.Command  `json:"commands"`
	Workflows map[string]*model.Workflow `json:"workflows"`
}

func newDocument() *document {
	return &document{
		Commands:  make(map[string]*model.Command),
		Workflows: make(map[string]*model.Workflow),
	}
}

func (d *document) commandNames() []string {
	names := make([]string, 0, len(d.Commands))
	for name := range d.Commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (d *document) workflowNames() []string {
	names := make([]string, 0, len(d.Workflows))
	for name := range d.Workflows {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// missSuggestion points at near-miss names when a lookup was likely a
// typo, and at the listing command otherwise.
func missSuggestion(name string, known []string, listHint string) string {
	similar := util.SuggestSimilar(name, known, 3)
	if len(similar) == 0 {
		return listHint
	}
	return fmt.Sprintf("Did you mean '%s'?", strings.Join(similar, "', '"))
}

// Store is the command/workflow repository. Safe for concurrent use
// within one process; cross-process coordination relies on the atomic
// rename.
type Store struct {
	path  string
	log   logger.Logger
	check *playground.Validate

	mu       sync.Mutex
	doc      *document
	loadedAt time.Time
}

// Open creates a store rooted at dir, creating the directory when needed.
func Open(dir string, log logger.Logger) (*Store, error) {
	if log == nil {
		log = logger.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrStore,
			fmt.Sprintf("Failed to create store directory %s", dir),
			"Check directory permissions")
	}
	return &Store{
		path:  filepath.Join(dir, FileName),
		log:   log,
		check: playground.New(),
		doc:   newDocument(),
	}, nil
}

// Path returns the store document path.
func (s *Store) Path() string {
	return s.path
}

// load refreshes the in-memory document when the file on disk changed
// since the last read. Callers must hold the mutex.
func (s *Store) load() error {
	info, err := os.Stat(s.path)
	if os.IsNotExist(err) {
		if s.loadedAt.IsZero() {
			s.doc = newDocument()
		}
		return nil
	}
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrStore,
			"Failed to stat store file",
			"Check file permissions")
	}
	if !info.ModTime().After(s.loadedAt) {
		return nil
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrStore,
			"Failed to read store file",
			"Check file permissions")
	}
	doc := newDocument()
	if err := json.Unmarshal(data, doc); err != nil {
		return errors.WrapWithCode(err, errors.ErrStore,
			fmt.Sprintf("Store file %s is not valid JSON", s.path),
			"Restore the file from a backup or remove it to start fresh")
	}
	if doc.Commands == nil {
		doc.Commands = make(map[string]*model.Command)
	}
	if doc.Workflows == nil {
		doc.Workflows = make(map[string]*model.Workflow)
	}
	s.doc = doc
	s.loadedAt = info.ModTime()
	s.log.Debug("store reloaded: %d commands, %d workflows", len(doc.Commands), len(doc.Workflows))
	return nil
}

// save writes the document atomically and refreshes the cache stamp.
// Callers must hold the mutex.
func (s *Store) save() error {
	data, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrStore,
			"Failed to encode store document",
			"")
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), FileName+".tmp-*")
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrStore,
			"Failed to create temporary store file",
			"Check directory permissions")
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.WrapWithCode(err, errors.ErrStore,
			"Failed to write store file",
			"Check available disk space")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.WrapWithCode(err, errors.ErrStore,
			"Failed to finalize store file",
			"")
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return errors.WrapWithCode(err, errors.ErrStore,
			"Failed to replace store file",
			"Check directory permissions")
	}

	if info, err := os.Stat(s.path); err == nil {
		s.loadedAt = info.ModTime()
	}
	return nil
}

// AddCommand admits a command into the store. Duplicate names are
// rejected.
func (s *Store) AddCommand(cmd *model.Command) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.load(); err != nil {
		return err
	}
	if err := s.check.Struct(cmd); err != nil {
		return errors.WrapWithCode(err, errors.ErrStore,
			fmt.Sprintf("Command '%s' is incomplete", cmd.Name),
			"Commands need at least a name and command text")
	}
	if _, exists := s.doc.Commands[cmd.Name]; exists {
		return errors.New(errors.ErrStore,
			fmt.Sprintf("Command '%s' already exists", cmd.Name),
			"Pick another name or remove the existing command first")
	}
	s.doc.Commands[cmd.Name] = cmd
	return s.save()
}

// PutCommand inserts or replaces a command. Import uses this for its
// overwrite merges; interactive adds go through AddCommand.
func (s *Store) PutCommand(cmd *model.Command) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.load(); err != nil {
		return err
	}
	if err := s.check.Struct(cmd); err != nil {
		return errors.WrapWithCode(err, errors.ErrStore,
			fmt.Sprintf("Command '%s' is incomplete", cmd.Name),
			"Commands need at least a name and command text")
	}
	s.doc.Commands[cmd.Name] = cmd
	return s.save()
}

// HasCommand reports whether a command with the name is stored.
func (s *Store) HasCommand(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.load(); err != nil {
		return false
	}
	_, ok := s.doc.Commands[name]
	return ok
}

// GetCommand looks up a stored command by name.
func (s *Store) GetCommand(name string) (*model.Command, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.load(); err != nil {
		return nil, err
	}
	cmd, ok := s.doc.Commands[name]
	if !ok {
		return nil, errors.New(errors.ErrStore,
			fmt.Sprintf("Command '%s' not found", name),
			missSuggestion(name, s.doc.commandNames(), "Run 'wf list --commands' to see what is stored"))
	}
	return cmd, nil
}

// ListCommands returns all stored commands sorted by name.
func (s *Store) ListCommands() ([]*model.Command, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.load(); err != nil {
		return nil, err
	}
	cmds := make([]*model.Command, 0, len(s.doc.Commands))
	for _, cmd := range s.doc.Commands {
		cmds = append(cmds, cmd)
	}
	sort.Slice(cmds, func(i, j int) bool { return cmds[i].Name < cmds[j].Name })
	return cmds, nil
}

// RemoveCommand deletes a stored command.
func (s *Store) RemoveCommand(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.load(); err != nil {
		return err
	}
	if _, ok := s.doc.Commands[name]; !ok {
		return errors.New(errors.ErrStore,
			fmt.Sprintf("Command '%s' not found", name),
			missSuggestion(name, s.doc.commandNames(), "Run 'wf list --commands' to see what is stored"))
	}
	delete(s.doc.Commands, name)
	return s.save()
}

// MarkCommandUsed bumps the command's usage counters and persists them.
func (s *Store) MarkCommandUsed(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.load(); err != nil {
		return err
	}
	cmd, ok := s.doc.Commands[name]
	if !ok {
		return errors.New(errors.ErrStore,
			fmt.Sprintf("Command '%s' not found", name), "")
	}
	cmd.MarkUsed()
	return s.save()
}

// AddWorkflow admits a workflow into the store after structural
// validation. Duplicate names are rejected.
func (s *Store) AddWorkflow(wf *model.Workflow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.load(); err != nil {
		return err
	}
	if err := wf.Validate(); err != nil {
		return errors.WrapWithCode(err, errors.ErrStore,
			fmt.Sprintf("Workflow '%s' has an invalid step tree", wf.Name),
			"Fix the step definitions before storing the workflow")
	}
	if err := s.check.Struct(wf); err != nil {
		return errors.WrapWithCode(err, errors.ErrStore,
			fmt.Sprintf("Workflow '%s' is incomplete", wf.Name),
			"Workflows need a name and at least one step")
	}
	if _, exists := s.doc.Workflows[wf.Name]; exists {
		return errors.New(errors.ErrStore,
			fmt.Sprintf("Workflow '%s' already exists", wf.Name),
			"Pick another name or remove the existing workflow first")
	}
	s.doc.Workflows[wf.Name] = wf
	return s.save()
}

// PutWorkflow inserts or replaces a workflow after structural
// validation.
func (s *Store) PutWorkflow(wf *model.Workflow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.load(); err != nil {
		return err
	}
	if err := wf.Validate(); err != nil {
		return errors.WrapWithCode(err, errors.ErrStore,
			fmt.Sprintf("Workflow '%s' has an invalid step tree", wf.Name),
			"Fix the step definitions before storing the workflow")
	}
	if err := s.check.Struct(wf); err != nil {
		return errors.WrapWithCode(err, errors.ErrStore,
			fmt.Sprintf("Workflow '%s' is incomplete", wf.Name),
			"Workflows need a name and at least one step")
	}
	s.doc.Workflows[wf.Name] = wf
	return s.save()
}

// HasWorkflow reports whether a workflow with the name is stored.
func (s *Store) HasWorkflow(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.load(); err != nil {
		return false
	}
	_, ok := s.doc.Workflows[name]
	return ok
}

// GetWorkflow looks up a stored workflow by name.
func (s *Store) GetWorkflow(name string) (*model.Workflow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.load(); err != nil {
		return nil, err
	}
	wf, ok := s.doc.Workflows[name]
	if !ok {
		return nil, errors.New(errors.ErrStore,
			fmt.Sprintf("Workflow '%s' not found", name),
			missSuggestion(name, s.doc.workflowNames(), "Run 'wf list --flows' to see what is stored"))
	}
	return wf, nil
}

// FindWorkflow is the lookup shape the workflow validator consumes.
func (s *Store) FindWorkflow(name string) (*model.Workflow, bool) {
	wf, err := s.GetWorkflow(name)
	if err != nil {
		return nil, false
	}
	return wf, true
}

// ListWorkflows returns all stored workflows sorted by name.
func (s *Store) ListWorkflows() ([]*model.Workflow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.load(); err != nil {
		return nil, err
	}
	flows := make([]*model.Workflow, 0, len(s.doc.Workflows))
	for _, wf := range s.doc.Workflows {
		flows = append(flows, wf)
	}
	sort.Slice(flows, func(i, j int) bool { return flows[i].Name < flows[j].Name })
	return flows, nil
}

// RemoveWorkflow deletes a stored workflow.
func (s *Store) RemoveWorkflow(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.load(); err != nil {
		return err
	}
	if _, ok := s.doc.Workflows[name]; !ok {
		return errors.New(errors.ErrStore,
			fmt.Sprintf("Workflow '%s' not found", name),
			missSuggestion(name, s.doc.workflowNames(), "Run 'wf list --flows' to see what is stored"))
	}
	delete(s.doc.Workflows, name)
	return s.save()
}

// MarkWorkflowUsed bumps the workflow's usage counters and persists them.
func (s *Store) MarkWorkflowUsed(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.load(); err != nil {
		return err
	}
	wf, ok := s.doc.Workflows[name]
	if !ok {
		return errors.New(errors.ErrStore,
			fmt.Sprintf("Workflow '%s' not found", name), "")
	}
	wf.MarkUsed()
	return s.save()
}

// AddWorkflowVariable declares a variable on a stored workflow. The
// store owns workflow mutation; the core components never mutate in
// place.
func (s *Store) AddWorkflowVariable(flow string, v model.Variable) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.load(); err != nil {
		return err
	}
	wf, ok := s.doc.Workflows[flow]
	if !ok {
		return errors.New(errors.ErrStore,
			fmt.Sprintf("Workflow '%s' not found", flow),
			"Run 'wf list --flows' to see what is stored")
	}
	wf.AddVariable(v)
	return s.save()
}

// AddWorkflowProfile attaches a profile to a stored workflow.
func (s *Store) AddWorkflowProfile(flow string, p model.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.load(); err != nil {
		return err
	}
	wf, ok := s.doc.Workflows[flow]
	if !ok {
		return errors.New(errors.ErrStore,
			fmt.Sprintf("Workflow '%s' not found", flow),
			"Run 'wf list --flows' to see what is stored")
	}
	wf.AddProfile(p)
	return s.save()
}
