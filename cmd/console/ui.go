package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/jwebster45206/drama-high/internal/session"
	"github.com/jwebster45206/drama-high/pkg/chat"
	"github.com/jwebster45206/drama-high/pkg/state"
)

const (
	AgentName       = "Narrator"
	PlaceHolderText = "Pick a choice number, or type /help..."
)

// Session is what the console drives. *session.Session implements it.
type Session interface {
	Start(ctx context.Context) error
	Choose(ctx context.Context, choiceID string) error
	RequestInsight(ctx context.Context) (string, error)
	Save(ctx context.Context) error
	Load(ctx context.Context) error
	ToggleMute() bool
	View() session.View
	State() *state.GameState
}

// ConsoleUI is the BubbleTea model that runs the UI.
// https://github.com/charmbracelet/bubbletea
type ConsoleUI struct {
	session      Session
	logger       *slog.Logger
	view         session.View
	story        []state.StoryEntry
	chatViewport viewport.Model
	metaViewport viewport.Model
	textarea     textarea.Model
	spinner      spinner.Model
	ready        bool
	width        int
	height       int

	// Long-running action state
	busy      bool
	busyLabel string
	notice    string
	noticeErr bool

	// Title menu state
	showTitleModal bool
	selectedOption int

	// Quit confirmation state
	showQuitModal bool

	// Progress bar state
	progressTick int
}

type actionDoneMsg struct {
	notice string
	err    error
}

type artPollMsg struct{}

type progressTickMsg struct{}

var titleOptions = []string{"Start a new story", "Continue saved game"}

var (
	chatPanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingBottom(1).
			PaddingLeft(3).
			PaddingRight(0)

	metaPanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingBottom(0).
			PaddingLeft(0).
			PaddingRight(2)

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")). // pink
			Bold(true)

	speakerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("212")). // purple
			Bold(true)

	narratorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")) // green

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")) // teal

	choiceStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")) // red

	loadingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")) // yellow

	insightStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("219")).
			Italic(true)

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 2).
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("255"))

	modalTitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			Align(lipgloss.Center)

	modalItemStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255"))

	modalSelectedItemStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("0")).
				Background(lipgloss.Color("205")).
				Bold(true)
)

var separatorStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("240")) // dark grey

func NewConsoleUI(s Session, logger *slog.Logger) ConsoleUI {
	ta := textarea.New()
	ta.Placeholder = PlaceHolderText
	ta.Focus()
	ta.Prompt = promptStyle.Render(":: ")
	ta.CharLimit = 200
	ta.SetWidth(50)
	ta.SetHeight(1)
	ta.ShowLineNumbers = false

	chatVp := viewport.New(50, 20)
	chatVp.MouseWheelEnabled = true

	metaVp := viewport.New(20, 20)

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = loadingStyle

	return ConsoleUI{
		session:        s,
		logger:         logger,
		view:           s.View(),
		textarea:       ta,
		chatViewport:   chatVp,
		metaViewport:   metaVp,
		spinner:        sp,
		showTitleModal: true,
	}
}

// writeMetadata renders the sidebar: progress, backpack and relationships.
func writeMetadata(v session.View) string {
	var content strings.Builder
	content.WriteString(titleStyle.Render("DRAMA HIGH") + "\n\n")

	content.WriteString(fmt.Sprintf("Chapter %d\n\n", v.Chapters+1))

	content.WriteString("Quest:\n")
	content.WriteString(orDefault(v.Quest, "Unknown") + "\n\n")

	content.WriteString("Location:\n")
	content.WriteString(orDefault(v.Location, "Unknown") + "\n\n")

	content.WriteString("Backpack:\n")
	if len(v.Inventory) == 0 {
		content.WriteString("Empty\n")
	}
	for _, item := range v.Inventory {
		content.WriteString("• " + item + "\n")
	}
	content.WriteString("\n")

	content.WriteString("Relationships:\n")
	if len(v.Relationships) == 0 {
		content.WriteString("Nobody yet\n")
	}
	for _, c := range v.Relationships {
		content.WriteString(fmt.Sprintf("• %s (%s)\n  %s %d\n", c.Name, kindLabel(c.Kind), scoreBar(c.Score, 10), c.Score))
	}
	content.WriteString("\n")

	if v.Muted {
		content.WriteString("Sound: muted\n\n")
	} else {
		content.WriteString("Sound: on\n\n")
	}

	content.WriteString("Commands:\n")
	content.WriteString("• 1-9: Choose\n")
	content.WriteString("• /vibe: Vibe check\n")
	content.WriteString("• /save, /load\n")
	content.WriteString("• /help: Help\n")
	content.WriteString("• Ctrl+C: Quit\n")

	return content.String()
}

func kindLabel(k state.RelationshipKind) string {
	if k == "" {
		k = state.KindNeutral
	}
	return cases.Title(language.English).String(string(k))
}

// scoreBar draws score (0-100) as a bar of width cells.
func scoreBar(score, width int) string {
	filled := score * width / state.MaxScore
	filled = max(0, min(width, filled))
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// writeChatContent rebuilds the story panel for the current viewport width
func (m *ConsoleUI) writeChatContent() {
	chatWidth := m.chatViewport.Width - 6 // Account for left(3) + right(3) padding
	if chatWidth < 20 {
		chatWidth = 20
	}

	var content strings.Builder
	content.WriteString(titleStyle.Render("DRAMA HIGH") + "\n\n")
	content.WriteString(separatorStyle.Render(strings.Repeat("─", chatWidth-6)) + "\n\n")

	for _, entry := range m.story {
		if entry.ChoiceMade != "" {
			content.WriteString(userStyle.Render("You: ") + wordwrap.String(entry.ChoiceMade, chatWidth-6) + "\n\n")
		}
		content.WriteString(formatNarratorResponse(entry.Text, chatWidth) + "\n\n")
	}

	switch {
	case m.view.ImageLoading:
		content.WriteString(loadingStyle.Render("Sketching the scene...") + "\n\n")
	case m.view.Image != "":
		content.WriteString(promptStyle.Render("[Scene art ready]") + "\n\n")
	}

	if m.busy && m.view.TurnInFlight {
		content.WriteString(m.renderProgressBar() + "\n\n")
	} else if !m.busy {
		for i, c := range m.view.Choices {
			line := fmt.Sprintf("[%d] %s", i+1, c.Text)
			content.WriteString(choiceStyle.Render(wordwrap.String(line, chatWidth-6)) + "\n")
		}
	}

	if m.view.Insight != "" {
		content.WriteString("\n" + insightStyle.Render("Vibe check: "+m.view.Insight) + "\n")
	}

	m.chatViewport.SetContent(content.String())
	m.chatViewport.GotoBottom()
}

// refresh pulls a fresh view and story log from the session.
func (m *ConsoleUI) refresh() {
	m.view = m.session.View()
	m.story = m.session.State().StoryLog
	m.writeChatContent()
	m.metaViewport.SetContent(writeMetadata(m.view))
}

func (m *ConsoleUI) resize() {
	chatWidth := int(float64(m.width)*0.72) - 4
	metaWidth := m.width - chatWidth - 6

	m.chatViewport.Width = chatWidth - 2
	m.chatViewport.Height = m.height - 8
	m.metaViewport.Width = metaWidth - 2
	m.metaViewport.Height = m.height - 4
	m.textarea.SetWidth(chatWidth - 4)
}

func (m ConsoleUI) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.spinner.Tick)
}

func (m ConsoleUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	// Handle quit modal first
	if m.showQuitModal {
		return m.updateQuitModal(msg)
	}

	// Handle title menu second
	if m.showTitleModal {
		return m.updateTitleModal(msg)
	}

	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
		mvCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.MouseMsg:
		m.chatViewport, vpCmd = m.chatViewport.Update(msg)
		m.metaViewport, mvCmd = m.metaViewport.Update(msg)
		return m, tea.Batch(vpCmd, mvCmd)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		m.ready = true
		m.refresh()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.showQuitModal = true
			return m, nil
		case tea.KeyEnter:
			input := strings.TrimSpace(m.textarea.Value())
			m.textarea.Reset()
			if input == "" {
				return m, nil
			}
			return m.handleInput(input)
		}

	case actionDoneMsg:
		m.busy = false
		m.busyLabel = ""
		m.notice = msg.notice
		m.noticeErr = false
		if msg.err != nil {
			m.logger.Warn("Console action failed", "error", msg.err)
			m.notice = userMessage(msg.err)
			m.noticeErr = true
		}
		m.refresh()
		if m.view.ImageLoading {
			return m, artPoll()
		}
		return m, nil

	case artPollMsg:
		m.refresh()
		if m.view.ImageLoading {
			return m, artPoll()
		}
		return m, nil

	case progressTickMsg:
		m.view = m.session.View()
		m.writeChatContent()
		if m.busy {
			m.progressTick++
			return m, progressTick()
		}
		return m, nil
	}

	m.textarea, tiCmd = m.textarea.Update(msg)
	m.chatViewport, vpCmd = m.chatViewport.Update(msg)
	m.metaViewport, mvCmd = m.metaViewport.Update(msg)

	return m, tea.Batch(tiCmd, vpCmd, mvCmd)
}

// userMessage maps session errors to what the player sees.
func userMessage(err error) string {
	switch {
	case errors.Is(err, session.ErrNoSave):
		return session.NoSaveMessage
	case errors.Is(err, session.ErrNothingToSave):
		return "Nothing to save yet."
	case errors.Is(err, session.ErrTurnInFlight), errors.Is(err, session.ErrInsightInFlight):
		return "Hold on, something is still happening..."
	case errors.Is(err, session.ErrUnknownChoice), errors.Is(err, session.ErrNotAwaitingChoice):
		return "That's not one of your options."
	default:
		return session.TurnErrorMessage
	}
}

func formatNarratorResponse(response string, width int) string {
	// Check if response already has a speaker prefix
	hasPrefix := false
	if idx := strings.Index(response, ":"); idx > 0 && idx <= 20 {
		speaker := response[:idx]
		if len(strings.Fields(speaker)) <= 2 {
			hasPrefix = true
		}
	}

	// If no prefix, we'll add "Narrator: " so reduce available width
	wrapWidth := width
	if !hasPrefix {
		wrapWidth = width - len(AgentName+": ")
	}

	wrappedResponse := wordwrap.String(response, wrapWidth)
	lines := strings.Split(wrappedResponse, "\n")
	formattedLines := make([]string, 0, len(lines))

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			formattedLines = append(formattedLines, "")
			continue
		}

		// Dialogue lines like "Jess: ..." get the speaker highlighted
		if idx := strings.Index(trimmed, ":"); idx > 0 && idx <= 20 {
			speaker := trimmed[:idx]
			rest := trimmed[idx+1:]
			if len(strings.Fields(speaker)) <= 2 {
				formattedLines = append(formattedLines, speakerStyle.Render(speaker+":")+rest)
				continue
			}
		}

		formattedLines = append(formattedLines, line)
	}

	result := strings.Join(formattedLines, "\n")
	if !hasPrefix {
		result = narratorStyle.Render(AgentName+": ") + result
	}
	return result
}

// parseChoice resolves a typed choice number to the offered choice id.
func parseChoice(input string, choices []state.Choice) (string, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil || n < 1 || n > len(choices) {
		return "", false
	}
	return choices[n-1].ID, true
}

func (m ConsoleUI) handleInput(input string) (tea.Model, tea.Cmd) {
	if strings.HasPrefix(input, "/") {
		return m.handleCommand(input)
	}
	if m.busy {
		return m, nil
	}

	id, ok := parseChoice(input, m.view.Choices)
	if !ok {
		m.notice = "Type the number of a choice."
		m.noticeErr = true
		return m, nil
	}
	return m.runAction("The story continues...", func(ctx context.Context) (string, error) {
		return "", m.session.Choose(ctx, id)
	})
}

func (m ConsoleUI) handleCommand(input string) (tea.Model, tea.Cmd) {
	cmd := strings.ToLower(strings.TrimSpace(input))

	switch cmd {
	case "/help":
		m.notice = "Type a number to choose. /vibe reads the room, /save and /load use the save slot, " +
			"/mute toggles sound, /copy copies the story, /new starts over."
		m.noticeErr = false

	case "/vibe", "/insight":
		return m.runBackground("Checking the vibe...", func(ctx context.Context) (string, error) {
			_, err := m.session.RequestInsight(ctx)
			return "", err
		})

	case "/save":
		return m.runBackground("Saving...", func(ctx context.Context) (string, error) {
			return "Game saved.", m.session.Save(ctx)
		})

	case "/load":
		if m.busy {
			return m, nil
		}
		return m.runAction("Loading...", func(ctx context.Context) (string, error) {
			return "Game loaded.", m.session.Load(ctx)
		})

	case "/new":
		if m.busy {
			return m, nil
		}
		return m.runAction("A new day begins...", func(ctx context.Context) (string, error) {
			return "", m.session.Start(ctx)
		})

	case "/mute":
		if m.session.ToggleMute() {
			m.notice = "Sound muted."
		} else {
			m.notice = "Sound on."
		}
		m.noticeErr = false
		m.refresh()

	case "/copy":
		transcript := chat.FormatTranscript(m.session.State().TurnLog)
		if err := clipboard.WriteAll(transcript); err != nil {
			m.logger.Warn("Failed to copy transcript", "error", err)
			m.notice = "Couldn't reach the clipboard."
			m.noticeErr = true
		} else {
			m.notice = "Story copied to clipboard."
			m.noticeErr = false
		}

	default:
		m.notice = "Unknown command. Try /help."
		m.noticeErr = true
	}

	return m, nil
}

// runAction runs a turn-like action that blocks new input until it returns.
func (m ConsoleUI) runAction(label string, fn func(ctx context.Context) (string, error)) (tea.Model, tea.Cmd) {
	m.busy = true
	m.busyLabel = label
	m.notice = ""
	m.progressTick = 0
	return m, tea.Batch(actionCmd(fn), progressTick())
}

// runBackground runs an action that does not block the story panel.
func (m ConsoleUI) runBackground(label string, fn func(ctx context.Context) (string, error)) (tea.Model, tea.Cmd) {
	m.notice = label
	m.noticeErr = false
	return m, tea.Batch(actionCmd(fn), refreshSoon())
}

func actionCmd(fn func(ctx context.Context) (string, error)) tea.Cmd {
	return func() tea.Msg {
		notice, err := fn(context.Background())
		return actionDoneMsg{notice: notice, err: err}
	}
}

// refreshSoon redraws once the session has flipped its loading flags.
func refreshSoon() tea.Cmd {
	return tea.Tick(50*time.Millisecond, func(time.Time) tea.Msg {
		return progressTickMsg{}
	})
}

func artPoll() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(time.Time) tea.Msg {
		return artPollMsg{}
	})
}

func (m ConsoleUI) updateTitleModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case actionDoneMsg:
		m.busy = false
		if msg.err != nil {
			m.logger.Warn("Failed to begin session", "error", msg.err)
			m.notice = userMessage(msg.err)
			m.noticeErr = true
			return m, nil
		}
		m.showTitleModal = false
		m.notice = msg.notice
		m.noticeErr = false
		if m.width > 0 && m.height > 0 {
			m.resize()
		}
		m.ready = true
		m.refresh()
		m.textarea.Focus()
		if m.view.ImageLoading {
			return m, tea.Batch(textarea.Blink, artPoll())
		}
		return m, textarea.Blink

	case tea.KeyMsg:
		if m.busy {
			return m, nil
		}
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.showQuitModal = true
			return m, nil
		case tea.KeyUp:
			if m.selectedOption > 0 {
				m.selectedOption--
			}
		case tea.KeyDown:
			if m.selectedOption < len(titleOptions)-1 {
				m.selectedOption++
			}
		case tea.KeyEnter:
			m.busy = true
			m.notice = ""
			if m.selectedOption == 0 {
				m.busyLabel = "Your alarm is ringing..."
				return m, actionCmd(func(ctx context.Context) (string, error) {
					return "", m.session.Start(ctx)
				})
			}
			m.busyLabel = "Loading your save..."
			return m, actionCmd(func(ctx context.Context) (string, error) {
				return "Game loaded.", m.session.Load(ctx)
			})
		}
	}

	return m, nil
}

func (m ConsoleUI) updateQuitModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc, tea.KeyEnter:
			return m, tea.Quit
		default:
			switch msg.String() {
			case "y", "Y":
				return m, tea.Quit
			case "n", "N":
				m.showQuitModal = false
				if m.showTitleModal {
					return m, nil
				}
				m.textarea.Focus()
				return m, textarea.Blink
			}
		}
	}

	return m, nil
}

func (m ConsoleUI) renderQuitModal() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var content strings.Builder
	content.WriteString(modalTitleStyle.Render("Leave School?"))
	content.WriteString("\n\n")
	content.WriteString("Unsaved drama will be lost. Quit anyway?")
	content.WriteString("\n\n")
	content.WriteString(promptStyle.Render("Press Y to quit, N to continue, or Ctrl+C to force quit"))

	modal := modalStyle.Width(50).Render(content.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m ConsoleUI) renderTitleModal() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var content strings.Builder
	content.WriteString(modalTitleStyle.Render("DRAMA HIGH"))
	content.WriteString("\n\n")

	if m.busy {
		content.WriteString(m.spinner.View() + " " + loadingStyle.Render(m.busyLabel))
	} else {
		for i, option := range titleOptions {
			if i == m.selectedOption {
				content.WriteString(modalSelectedItemStyle.Render(fmt.Sprintf("▶ %s", option)))
			} else {
				content.WriteString(modalItemStyle.Render(fmt.Sprintf("  %s", option)))
			}
			content.WriteString("\n")
		}
		if m.notice != "" {
			content.WriteString("\n" + errorStyle.Render(m.notice) + "\n")
		}
		content.WriteString("\n")
		content.WriteString(promptStyle.Render("Use ↑/↓ to navigate, Enter to select, Ctrl+C to exit"))
	}

	modal := modalStyle.Width(60).Render(content.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m ConsoleUI) renderStatusLine() string {
	switch {
	case m.busy:
		return m.spinner.View() + " " + loadingStyle.Render(m.busyLabel)
	case m.view.InsightLoading:
		return m.spinner.View() + " " + loadingStyle.Render("Checking the vibe...")
	case m.notice != "" && m.noticeErr:
		return errorStyle.Render(m.notice)
	case m.view.Error != "":
		return errorStyle.Render(m.view.Error)
	default:
		return promptStyle.Render(m.notice)
	}
}

func (m ConsoleUI) View() string {
	if m.showQuitModal {
		return m.renderQuitModal()
	}

	if m.showTitleModal {
		return m.renderTitleModal()
	}

	if !m.ready {
		return "\n  Initializing..."
	}

	chatWidth := int(float64(m.width)*0.72) - 4
	metaWidth := m.width - chatWidth - 6

	chatPanel := chatPanelStyle.Width(chatWidth).Height(m.height - 3).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			m.chatViewport.View(),
			m.renderStatusLine(),
			separatorStyle.Render(strings.Repeat("─", max(0, chatWidth-4))),
			m.textarea.View(),
		),
	)

	metaPanel := metaPanelStyle.Width(metaWidth).Height(m.height - 2).Render(
		m.metaViewport.View(),
	)

	return lipgloss.JoinHorizontal(lipgloss.Top, chatPanel, metaPanel)
}

// renderProgressBar creates an animated progress bar for loading states
func (m ConsoleUI) renderProgressBar() string {
	usable := m.chatViewport.Width - 6
	if usable <= 0 {
		usable = 30 // fallback before sizing
	}

	// Clamp bar width to a sensible range
	if usable > 80 {
		usable = 80
	} else if usable < 10 {
		usable = 10
	}

	const totalFrames = 40
	frame := m.progressTick % totalFrames
	filled := (frame * usable) / totalFrames

	var bar strings.Builder
	for i := 0; i < usable; i++ {
		if i < filled {
			bar.WriteString("█")
		} else if i == filled && frame%4 < 2 {
			bar.WriteString("▓") // Blinking effect at the progress point
		} else {
			bar.WriteString("░")
		}
	}
	return separatorStyle.Render(bar.String())
}

// progressTick creates a command that sends a progress tick message
func progressTick() tea.Cmd {
	return tea.Tick(time.Millisecond*200, func(time.Time) tea.Msg {
		return progressTickMsg{}
	})
}
