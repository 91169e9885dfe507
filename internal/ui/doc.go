// Package ui provides terminal UI components for wf's CLI output.
//
// The package includes spinners, phase displays, tables, pickers, and
// styled text output using the Lip Gloss library for consistent
// terminal styling across all commands.
//
// # Components Overview
//
//	Spinner           - Animated status indicator for long-running operations
//	PhaseDisplay      - Renders workflow step progress with timing
//	Tables            - Aligned tables for list, history, and doctor output
//	Picker            - Interactive entry selection built on Bubble Tea
//	ConnectionDisplay - SSH connection attempt feedback for remote runs
//	Header            - Branded version header
//
// # Color Scheme
//
// Colors are defined as ANSI codes for broad terminal compatibility:
//
//	ColorSuccess   (green)  - Successful operations
//	ColorError     (red)    - Failures and errors
//	ColorWarning   (yellow) - Warnings and skipped items
//	ColorInfo      (cyan)   - Informational messages
//	ColorMuted     (gray)   - Secondary text, timing info
//	ColorSecondary (blue)   - In-progress indicators
//
// ApplyColorMode honors the configured output.color setting ("auto",
// "always", or "never"); DisableColors switches to plain text.
//
// # Symbols
//
// Unicode symbols provide visual status indicators:
//
//	SymbolSuccess  (checkmark)  - Step completed successfully
//	SymbolFail     (X)          - Step failed
//	SymbolPending  (circle)     - Step not yet started
//	SymbolProgress (half-fill)  - Step in progress
//	SymbolSkipped  (slashed)    - Step skipped
//	SymbolWarning  (triangle)   - Non-fatal problem
//
// # Spinner Usage
//
// The Spinner type provides an animated indicator for operations whose
// duration cannot be predicted, such as assistant requests:
//
//	s := ui.NewSpinner("Thinking")
//	s.Start()
//	// ... do work ...
//	s.Success() // or s.Fail()
//
// The spinner handles cursor movement, line clearing, and timing display,
// and degrades to static lines when output is not a TTY.
//
// # Phase Display
//
// PhaseDisplay renders step-by-step progress for workflow runs:
//
//	pd := ui.NewPhaseDisplay(os.Stdout)
//	pd.RenderProgress("build")
//	pd.RenderSuccess("build", 300*time.Millisecond)
//	pd.Divider()
//
// # Picker
//
// Pick presents a filterable list of stored entries when a command is
// invoked without a name argument. It returns the selected entry, or nil
// when the user cancels.
package ui
