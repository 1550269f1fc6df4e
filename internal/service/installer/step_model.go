package installer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
)

// ModelStep lets the user pick one of the free OpenRouter models.
type ModelStep struct {
	list     list.Model
	lister   ModelLister
	loading  bool
	fetching bool // Ensures we only trigger the API call once
	err      error
}

func NewModelStep(lister ModelLister) Step {
	l := list.New([]list.Item{}, list.NewDefaultDelegate(), 0, 0)
	l.Title = "Select a free model"
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(true)
	l.Styles.Title = titleStyle

	return &ModelStep{
		list:    l,
		lister:  lister,
		loading: true,
	}
}

// Init only wakes Update, which knows the API key and starts the fetch.
func (s *ModelStep) Init() tea.Cmd {
	return func() tea.Msg { return nextMsg{} }
}

func (s *ModelStep) fetch(apiKey string) tea.Cmd {
	lister := s.lister
	return func() tea.Msg {
		if lister == nil {
			return errMsg(errors.New("no model source configured"))
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		models, err := lister(ctx, apiKey)
		if err != nil {
			return errMsg(err)
		}
		if len(models) == 0 {
			return errMsg(errors.New("no free models available for this key"))
		}

		items := make([]list.Item, 0, len(models))
		for _, mod := range models {
			items = append(items, item{
				id:    mod.ID,
				title: mod.Name,
				desc:  fmt.Sprintf("ID: %s | Context: %d", mod.ID, mod.ContextLength),
			})
		}
		return modelsMsg(items)
	}
}

func (s *ModelStep) Update(msg tea.Msg, state *InstallState, width, height int) (Step, tea.Cmd) {
	if s.loading && !s.fetching {
		s.fetching = true
		return s, s.fetch(state.EnvVars["OPENROUTER_API_KEY"])
	}

	s.list.SetSize(width, height-4)

	var cmd tea.Cmd
	switch msg := msg.(type) {
	case modelsMsg:
		s.list.SetItems(msg)
		s.loading = false
		s.fetching = false
		return s, nil

	case errMsg:
		s.loading = false
		s.fetching = false
		s.err = msg
		return s, nil

	case tea.KeyMsg:
		if s.err != nil {
			if msg.String() == "enter" {
				s.err = nil
				s.loading = true
				s.fetching = false
			}
			return s, nil
		}

		if msg.String() == "enter" {
			wasFiltering := s.list.FilterState() == list.Filtering
			s.list, cmd = s.list.Update(msg)

			if wasFiltering || s.list.FilterState() == list.Filtering {
				return s, cmd
			}

			if i, ok := s.list.SelectedItem().(item); ok {
				state.EnvVars["OPENROUTER_MODEL"] = i.id
				return nil, nil
			}
			return s, cmd
		}
	}

	s.list, cmd = s.list.Update(msg)
	return s, cmd
}

func (s *ModelStep) View(state *InstallState) string {
	if s.err != nil {
		return errorStyle.Render(fmt.Sprintf("Error fetching models: %v", s.err)) +
			"\n\nCheck your API key and internet connection.\n\n(press enter to retry, ctrl+c to quit)\n"
	}
	if s.loading {
		return "Fetching free models from OpenRouter...\n"
	}
	return s.list.View()
}
