// Package tui is the terminal chat client.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"portfolio-assistant/internal/client"
	"portfolio-assistant/internal/domain"
	"portfolio-assistant/internal/profile"
	"portfolio-assistant/internal/render"
)

type (
	// changedMsg means the conversation moved; re-render.
	changedMsg struct{}
	doneMsg    struct{ err error }
)

type Model struct {
	ctx     context.Context
	client  *client.Client
	changes chan struct{}
	profile profile.Profile
	theme   render.Theme
	copy    func(string) error

	viewport viewport.Model
	textarea textarea.Model
	spinner  spinner.Model

	pending    bool
	suggestion int
	status     string
	err        error
	ready      bool
	width      int
	height     int
}

// NewModel builds the chat screen for one conversation over transport.
func NewModel(ctx context.Context, transport client.Transport, p profile.Profile, theme render.Theme) Model {
	changes := make(chan struct{}, 1)
	c := client.New(transport, client.WithOnChange(func() {
		select {
		case changes <- struct{}{}:
		default:
		}
	}))

	ta := textarea.New()
	ta.Placeholder = "Ask me anything about " + p.Name + "..."
	ta.CharLimit = 2000
	ta.ShowLineNumbers = false
	ta.SetHeight(2)
	ta.KeyMap.InsertNewline.SetEnabled(false)
	ta.Focus()

	s := spinner.New()
	s.Spinner = spinner.Points

	return Model{
		ctx:      ctx,
		client:   c,
		changes:  changes,
		profile:  p,
		theme:    theme,
		copy:     clipboard.WriteAll,
		textarea: ta,
		spinner:  s,
		viewport: viewport.New(80, 20),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.spinner.Tick, m.waitForChange())
}

func (m Model) waitForChange() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-m.changes:
			return changedMsg{}
		case <-m.ctx.Done():
			return nil
		}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.textarea.SetWidth(msg.Width - 2)
		m.viewport.Width = msg.Width
		m.viewport.Height = max(msg.Height-m.textarea.Height()-4, 3)
		m.ready = true
		m.refresh()

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "enter":
			return m, m.submit()
		case "tab":
			m.prefill()
			return m, nil
		case "ctrl+t":
			m.theme = m.theme.Toggle()
			m.status = "theme: " + string(m.theme)
			m.refresh()
			return m, nil
		case "ctrl+y":
			m.copyLastReply()
			return m, nil
		}

	case changedMsg:
		m.refresh()
		return m, m.waitForChange()

	case doneMsg:
		m.pending = false
		m.err = msg.err
		if msg.err == nil {
			m.status = ""
		}
		m.textarea.Focus()
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	if !m.pending {
		var cmd tea.Cmd
		m.textarea, cmd = m.textarea.Update(msg)
		cmds = append(cmds, cmd)
	}
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// submit starts a reply unless one is already streaming or the input is
// blank. The input stays disabled until doneMsg.
func (m *Model) submit() tea.Cmd {
	if m.pending || m.client.Busy() {
		return nil
	}
	text := strings.TrimSpace(m.textarea.Value())
	if text == "" {
		m.status = "type a question first"
		return nil
	}

	m.pending = true
	m.err = nil
	m.status = ""
	m.textarea.Reset()
	m.textarea.Blur()

	c, ctx := m.client, m.ctx
	return func() tea.Msg {
		return doneMsg{err: c.Submit(ctx, text)}
	}
}

// prefill cycles the input through the suggested questions.
func (m *Model) prefill() {
	qs := m.profile.SuggestedQuestions
	if len(qs) == 0 || m.pending {
		return
	}
	m.textarea.SetValue(qs[m.suggestion%len(qs)])
	m.suggestion++
}

func (m *Model) copyLastReply() {
	reply, ok := m.client.LastReply()
	if !ok {
		m.status = "nothing to copy yet"
		return
	}
	if err := m.copy(reply); err != nil {
		m.status = "copy failed: " + err.Error()
		return
	}
	m.status = "reply copied"
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.transcript())
	m.viewport.GotoBottom()
}

func (m Model) transcript() string {
	st := stylesFor(m.theme)
	conv := m.client.Conversation()
	if len(conv) == 0 {
		return st.dim.Render(m.intro())
	}

	width := m.viewport.Width
	if width <= 0 {
		width = 80
	}
	opts := render.DefaultOptions().WithWidth(width - 2).WithTheme(m.theme)

	var b strings.Builder
	for _, msg := range conv {
		switch msg.Role {
		case domain.RoleUser:
			b.WriteString(st.label.Render("You"))
			b.WriteString("\n")
			b.WriteString(st.user.Render(msg.Content))
		case domain.RoleAssistant:
			b.WriteString(st.label.Render(m.profile.Name + "'s assistant"))
			b.WriteString("\n")
			b.WriteString(render.Terminal(msg.Content, opts))
		}
		b.WriteString("\n\n")
	}
	return b.String()
}

func (m Model) intro() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Ask about %s (%s).\n\nSuggested questions (tab to use):\n", m.profile.Name, m.profile.Title)
	for _, q := range m.profile.SuggestedQuestions {
		b.WriteString("  • " + q + "\n")
	}
	return b.String()
}

func (m Model) View() string {
	if !m.ready {
		return "loading..."
	}
	st := stylesFor(m.theme)

	header := st.header.Render(m.profile.Name + " · " + m.profile.Title)

	var status string
	switch {
	case m.pending:
		status = m.spinner.View() + " thinking"
	case m.err != nil:
		status = st.errText.Render("error: " + m.err.Error())
	case m.status != "":
		status = st.dim.Render(m.status)
	default:
		status = st.dim.Render("enter send · tab suggest · ctrl+t theme · ctrl+y copy · esc quit")
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		m.viewport.View(),
		status,
		m.textarea.View(),
	)
}

// Run starts the full-screen chat and blocks until the user quits.
func Run(ctx context.Context, transport client.Transport, p profile.Profile, theme render.Theme) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	prog := tea.NewProgram(NewModel(ctx, transport, p, theme), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := prog.Run()
	return err
}
