package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

func promptString(reader *bufio.Reader, label, def string, required bool) string {
	for {
		if def != "" {
			fmt.Printf("%s [%s]: ", label, def)
		} else {
			fmt.Printf("%s: ", label)
		}

		input, err := reader.ReadString('\n')
		if err != nil && input == "" {
			if def != "" || !required {
				fmt.Println()
				return def
			}
			fmt.Fprintln(os.Stderr, "input error, please try again")
			continue
		}
		input = strings.TrimSpace(input)

		if input == "" {
			input = def
		}

		if required && strings.TrimSpace(input) == "" {
			fmt.Println("Value is required.")
			continue
		}

		return input
	}
}

func promptInt(reader *bufio.Reader, label string, def, min, max int) int {
	for {
		raw := promptString(reader, label, strconv.Itoa(def), true)
		val, err := strconv.Atoi(raw)
		if err != nil || val < min || val > max {
			fmt.Printf("Enter a valid integer between %d and %d.\n", min, max)
			continue
		}
		return val
	}
}

func promptYesNo(reader *bufio.Reader, label string, def bool) bool {
	defLabel := "y/N"
	if def {
		defLabel = "Y/n"
	}
	for {
		raw := strings.ToLower(promptString(reader, label+" ("+defLabel+")", "", false))
		switch raw {
		case "":
			return def
		case "y", "yes":
			return true
		case "n", "no":
			return false
		}
		fmt.Println("Please answer y or n.")
	}
}

var errPromptCancelled = errors.New("cancelled")

// passwordModel reads one masked line.
type passwordModel struct {
	input     textinput.Model
	done      bool
	cancelled bool
}

func (m passwordModel) Init() tea.Cmd { return textinput.Blink }

func (m passwordModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if k, ok := msg.(tea.KeyMsg); ok {
		switch k.Type {
		case tea.KeyEnter:
			m.done = true
			return m, tea.Quit
		case tea.KeyCtrlC, tea.KeyEsc:
			m.cancelled = true
			return m, tea.Quit
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m passwordModel) View() string {
	if m.done || m.cancelled {
		return ""
	}
	return m.input.View() + "\n"
}

func promptPassword(label string) (string, error) {
	input := textinput.New()
	input.Prompt = label + ": "
	input.EchoMode = textinput.EchoPassword
	input.EchoCharacter = '•'
	input.Focus()

	final, err := tea.NewProgram(passwordModel{input: input}).Run()
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	m := final.(passwordModel)
	if m.cancelled {
		return "", errPromptCancelled
	}
	return m.input.Value(), nil
}
