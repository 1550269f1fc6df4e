package installer

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// OpenRouterKeyStep collects the OpenRouter API key
type OpenRouterKeyStep struct {
	input textinput.Model
	empty bool
}

func NewOpenRouterKeyStep() Step {
	ti := textinput.New()
	ti.Focus()
	ti.CharLimit = 255
	ti.Width = 40
	ti.Placeholder = "sk-or-v1-..."
	ti.EchoMode = textinput.EchoPassword
	ti.EchoCharacter = '•'

	return &OpenRouterKeyStep{input: ti}
}

func (s *OpenRouterKeyStep) Init() tea.Cmd {
	return textinput.Blink
}

func (s *OpenRouterKeyStep) Update(msg tea.Msg, state *InstallState, width, height int) (Step, tea.Cmd) {
	var cmd tea.Cmd
	s.input, cmd = s.input.Update(msg)

	if key, ok := msg.(tea.KeyMsg); ok && key.String() == "enter" {
		val := strings.TrimSpace(s.input.Value())
		if val == "" {
			s.empty = true
			return s, nil
		}
		state.EnvVars["OPENROUTER_API_KEY"] = val
		return nil, nil
	}
	return s, cmd
}

func (s *OpenRouterKeyStep) View(state *InstallState) string {
	view := "Enter your OpenRouter API Key:\n\n" + s.input.View() + "\n\n"
	if s.empty {
		view += errorStyle.Render("The key is required.") + "\n"
	}
	return view + hintStyle.Render("(press enter to confirm)") + "\n"
}
