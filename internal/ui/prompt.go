package ui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/manifoldco/promptui"
)

// Prompter asks questions on the terminal.
type Prompter struct{}

func NewPrompter() *Prompter {
	return &Prompter{}
}

func (Prompter) Confirm(title, prompt string) (bool, error) {
	p := promptui.Prompt{
		Label:     fmt.Sprintf("%s: %s", title, prompt),
		IsConfirm: true,
	}

	_, err := p.Run()
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, promptui.ErrAbort):
		return false, nil
	case errors.Is(err, promptui.ErrInterrupt), errors.Is(err, promptui.ErrEOF):
		return false, nil
	}
	return false, err
}

func (Prompter) PromptString(title, prompt string) (string, bool, error) {
	p := promptui.Prompt{
		Label: fmt.Sprintf("%s (%s)", title, prompt),
	}

	v, err := p.Run()
	switch {
	case err == nil:
		return strings.TrimSpace(v), true, nil
	case errors.Is(err, promptui.ErrInterrupt), errors.Is(err, promptui.ErrEOF), errors.Is(err, promptui.ErrAbort):
		return "", false, nil
	}
	return "", false, err
}
