package installer

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// TextStep asks for one value; an empty answer keeps the default.
type TextStep struct {
	prompt string
	envKey string
	def    string
	input  textinput.Model
}

func NewTextStep(prompt, envKey, def string) Step {
	ti := textinput.New()
	ti.Focus()
	ti.Placeholder = def
	ti.Width = 50
	return &TextStep{prompt: prompt, envKey: envKey, def: def, input: ti}
}

func (s *TextStep) Init() tea.Cmd {
	return textinput.Blink
}

func (s *TextStep) Update(msg tea.Msg, state *InstallState, width, height int) (Step, tea.Cmd) {
	var cmd tea.Cmd
	s.input, cmd = s.input.Update(msg)

	if key, ok := msg.(tea.KeyMsg); ok && key.String() == "enter" {
		val := strings.TrimSpace(s.input.Value())
		if val == "" {
			val = s.def
		}
		state.EnvVars[s.envKey] = val
		return nil, nil
	}
	return s, cmd
}

func (s *TextStep) View(state *InstallState) string {
	return s.prompt + "\n\n" + s.input.View() + "\n\n" + hintStyle.Render("(press enter to keep "+s.def+")") + "\n"
}
