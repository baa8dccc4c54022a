// internal/tui/chat.go
// Package tui implements the interactive chat client for a running hrdesk
// server.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/acmecorp/hrdesk/internal/apiclient"
	"github.com/acmecorp/hrdesk/internal/history"
	"github.com/acmecorp/hrdesk/internal/util"
)

// ChatAPI is the slice of the server API the chat program needs.
// *apiclient.Client satisfies it.
type ChatAPI interface {
	Ask(ctx context.Context, sessionID, question string) (apiclient.AskResult, error)
	History(ctx context.Context, sessionID string) ([]history.Turn, error)
	EndSession(ctx context.Context, sessionID string) error
}

// chatTurn is one rendered transcript entry.
type chatTurn struct {
	role      string
	text      string
	grounding []string
}

// model is the Bubble Tea model for the chat program.
type model struct {
	ctx       context.Context
	api       ChatAPI
	sessionID string

	turns     []chatTurn
	textInput textinput.Model
	viewport  viewport.Model
	spinner   spinner.Model

	isLoading        bool
	err              error
	width, height    int
	requestStartTime time.Time
}

// initialModel creates the chat model. A non-empty sessionID resumes an
// existing conversation.
func initialModel(ctx context.Context, api ChatAPI, sessionID string) *model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	ti := textinput.New()
	ti.Placeholder = "Ask about HR policies..."
	ti.Prompt = "You: "
	ti.CharLimit = 2000
	ti.Focus()

	vp := viewport.New(100, 5)

	return &model{
		ctx:       ctx,
		api:       api,
		sessionID: sessionID,
		textInput: ti,
		viewport:  vp,
		spinner:   s,
	}
}

// answerMsg carries a completed answer from the server.
type answerMsg struct{ result apiclient.AskResult }

// historyMsg carries the persisted turns of a resumed session.
type historyMsg struct{ turns []history.Turn }

// sessionEndedMsg is sent after the server confirms a session delete.
type sessionEndedMsg struct{}

// requestErr is sent when any server call fails.
type requestErr struct{ error }

// tickMsg drives the elapsed-time display while a request is running.
type tickMsg time.Time

// askCmd sends one question to the server.
func askCmd(ctx context.Context, api ChatAPI, sessionID, question string) tea.Cmd {
	return func() tea.Msg {
		result, err := api.Ask(ctx, sessionID, question)
		if err != nil {
			return requestErr{error: err}
		}
		return answerMsg{result: result}
	}
}

// loadHistoryCmd fetches the transcript of an existing session.
func loadHistoryCmd(ctx context.Context, api ChatAPI, sessionID string) tea.Cmd {
	return func() tea.Msg {
		turns, err := api.History(ctx, sessionID)
		if err != nil {
			return requestErr{error: err}
		}
		return historyMsg{turns: turns}
	}
}

// endSessionCmd deletes the session history on the server.
func endSessionCmd(ctx context.Context, api ChatAPI, sessionID string) tea.Cmd {
	return func() tea.Msg {
		if err := api.EndSession(ctx, sessionID); err != nil {
			return requestErr{error: err}
		}
		return sessionEndedMsg{}
	}
}

// tickCmd sends a tickMsg at a regular interval while a request runs.
func tickCmd() tea.Cmd {
	return tea.Tick(time.Millisecond*100, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Init starts the spinner and, when resuming, loads the prior transcript.
func (m *model) Init() tea.Cmd {
	if m.sessionID != "" {
		return tea.Batch(m.spinner.Tick, loadHistoryCmd(m.ctx, m.api, m.sessionID))
	}
	return m.spinner.Tick
}

// Update is the central update function for the chat program.
func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		cmd  tea.Cmd
		cmds []tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "ctrl+e":
			if m.sessionID != "" && !m.isLoading {
				m.isLoading = true
				m.err = nil
				m.requestStartTime = time.Now()
				return m, tea.Batch(m.spinner.Tick, endSessionCmd(m.ctx, m.api, m.sessionID), tickCmd())
			}
			return m, nil
		case "enter":
			question := strings.TrimSpace(m.textInput.Value())
			if question != "" && !m.isLoading {
				m.turns = append(m.turns, chatTurn{role: history.RoleUser, text: question})
				m.textInput.Reset()
				m.isLoading = true
				m.err = nil
				m.requestStartTime = time.Now()
				m.viewport.GotoBottom()
				cmds = append(cmds, m.spinner.Tick, askCmd(m.ctx, m.api, m.sessionID, question), tickCmd())
			}
		}

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.textInput.Width = msg.Width - 8
		headerHeight := 3
		footerHeight := 4
		m.viewport.Width = msg.Width
		m.viewport.Height = msg.Height - headerHeight - footerHeight

	case answerMsg:
		m.isLoading = false
		m.sessionID = msg.result.SessionID
		m.turns = append(m.turns, chatTurn{
			role:      history.RoleAssistant,
			text:      msg.result.Answer,
			grounding: msg.result.GroundingChunkIDs,
		})
		m.textInput.Focus()
		m.viewport.GotoBottom()
		return m, nil

	case historyMsg:
		for _, turn := range msg.turns {
			m.turns = append(m.turns, chatTurn{role: turn.Role, text: turn.Text})
		}
		m.viewport.GotoBottom()
		return m, nil

	case sessionEndedMsg:
		m.isLoading = false
		m.sessionID = ""
		m.turns = nil
		m.textInput.Focus()
		return m, nil

	case requestErr:
		m.isLoading = false
		m.err = msg.error
		m.textInput.Focus()
		return m, nil

	case tickMsg:
		if m.isLoading {
			return m, tickCmd()
		}
		return m, nil
	}

	m.textInput, cmd = m.textInput.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	if m.isLoading {
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// View renders the chat interface.
func (m *model) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	var builder strings.Builder

	headerStyle := lipgloss.NewStyle().Background(lipgloss.Color("62")).Foreground(lipgloss.Color("230")).Padding(0, 1)
	helpStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("244"))

	session := m.sessionID
	if session == "" {
		session = "new"
	}
	header := headerStyle.Render(fmt.Sprintf("hrdesk chat | session: %s", session))
	help := helpStyle.Render(" (enter to send, ctrl+e to end session, esc to quit)")
	builder.WriteString(header + help + "\n\n")

	m.viewport.SetContent(m.transcript())
	builder.WriteString(m.viewport.View())

	if m.err != nil {
		errorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
		builder.WriteString("\n" + errorStyle.Render(util.TruncateToWidth(fmt.Sprintf("Error: %v", m.err), m.width-2)))
	}

	if m.isLoading {
		timer := fmt.Sprintf("%.1f", time.Since(m.requestStartTime).Seconds())
		builder.WriteString("\n" + m.spinner.View() + fmt.Sprintf(" Assistant is thinking... %ss", timer))
	} else {
		builder.WriteString("\n" + m.textInput.View())
	}

	return builder.String()
}

// transcript renders the conversation so far, with a source footer under
// each grounded answer.
func (m *model) transcript() string {
	userStyle := lipgloss.NewStyle().Bold(true)
	assistantStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("5"))
	sourceStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("244"))

	var builder strings.Builder
	for _, turn := range m.turns {
		var role string
		if turn.role == history.RoleAssistant {
			role = assistantStyle.Render("Assistant: ")
		} else {
			role = userStyle.Render("You: ")
		}
		wrapped := lipgloss.NewStyle().Width(m.width - lipgloss.Width(role) - 2).Render(turn.text)
		builder.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, role, wrapped) + "\n")
		if len(turn.grounding) > 0 {
			sources := util.TruncateRunes("  sources: "+strings.Join(turn.grounding, ", "), m.width-2)
			builder.WriteString(sourceStyle.Render(sources) + "\n")
		}
	}
	return builder.String()
}

// StartChat connects to the server at serverURL and runs the interactive
// chat program. A non-empty sessionID resumes that conversation.
func StartChat(ctx context.Context, serverURL, sessionID string, timeout time.Duration) error {
	client := apiclient.New(serverURL, timeout)

	if _, err := client.CheckHealth(ctx); err != nil {
		return fmt.Errorf("hrdesk server not reachable at %s: %w", serverURL, err)
	}

	m := initialModel(ctx, client, sessionID)
	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running chat program: %w", err)
	}
	return nil
}
