package cli

import (
	"errors"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/mattn/go-isatty"

	"github.com/fleetdesk/leaveguard/internal/domain"
)

// StdinIsTerminal reports whether prompts can be answered.
func StdinIsTerminal() bool {
	return isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())
}

// HuhConfirm shows a yes/no prompt. Aborting the form counts as "no".
func HuhConfirm(title string) (bool, error) {
	ok := false
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(title).
				Affirmative("Yes").
				Negative("No").
				Value(&ok),
		),
	).WithShowHelp(false).Run()
	if errors.Is(err, huh.ErrUserAborted) {
		return false, nil
	}
	return ok, err
}

// confirm prompts only on an interactive terminal; scripts proceed.
func (a *App) confirm(title string, assumeYes bool) (bool, error) {
	if assumeYes || a.Confirm == nil {
		return true, nil
	}
	if a.IsInteractive == nil || !a.IsInteractive() {
		return true, nil
	}
	return a.Confirm(title)
}

var errAborted = errors.New("aborted")

// Exit codes returned by leaveguard.
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitClientError = 2
	ExitNotFound    = 3
	ExitRetryable   = 4
	ExitPartial     = 5
	ExitAborted     = 6
)

// ExitCode maps an error returned by a command to the process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, errAborted):
		return ExitAborted
	case errors.Is(err, domain.ErrPartialSuggestion):
		return ExitPartial
	case domain.IsNotFound(err):
		return ExitNotFound
	case domain.IsRetryable(err):
		return ExitRetryable
	case domain.IsClientError(err):
		return ExitClientError
	default:
		return ExitFailure
	}
}
