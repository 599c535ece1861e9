package tui

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"bnrag/internal/domain"
)

// ChatPort is the TUI-facing subset of the RAG service.
type ChatPort interface {
	Query(ctx context.Context, sessionID, question string) (string, domain.QueryResult, error)
	Clear(sessionID string) bool
}

type answerMsg struct {
	query     string
	sessionID string
	result    domain.QueryResult
	err       error
}

// Model is the Bubble Tea model for the chat application.
type Model struct {
	service   ChatPort
	timeout   time.Duration
	sessionID string
	input     textinput.Model
	viewport  viewport.Model
	result    *domain.QueryResult
	summary   string
	status    string
	cursor    int
	ready     bool
	busy      bool
	lastQuery string
}

// New creates a new TUI model instance. timeout bounds each question.
func New(service ChatPort, summary string, timeout time.Duration) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "প্রশ্ন লিখুন / ask a question, /clear to reset"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	if timeout <= 0 {
		timeout = time.Minute
	}
	return Model{service: service, timeout: timeout, input: ti, viewport: vp, summary: summary, status: "Ready. Ask in Bangla or English."}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key and window events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		// account for frames around result and query boxes
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		totalHeaderLines := 2                                    // header + summary
		totalFooterLines := 1                                    // status
		reserved := totalHeaderLines + totalFooterLines + qh + 1 // 1 spacer
		vh := msg.Height - reserved
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-rh)
		m.viewport.SetContent(m.renderAnswer())
		return m, nil
	case answerMsg:
		m.busy = false
		if msg.sessionID != "" {
			m.sessionID = msg.sessionID
		}
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
		} else {
			res := msg.result
			m.result = &res
			m.cursor = 0
			m.lastQuery = msg.query
			m.status = fmt.Sprintf("Answered %q", msg.query)
		}
		m.viewport.SetContent(m.renderAnswer())
		return m, nil
	case tea.KeyMsg:
		// Global quits
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q == "" || m.busy {
				return m, nil
			}
			m.input.SetValue("")
			if q == "/clear" {
				if m.sessionID != "" {
					m.service.Clear(m.sessionID)
				}
				m.result = nil
				m.status = "Conversation cleared."
				m.viewport.SetContent(m.renderAnswer())
				return m, nil
			}
			m.busy = true
			m.status = "Thinking..."
			return m, m.ask(q)
		case "down":
			if m.result != nil && len(m.result.Sources) > 0 {
				m.cursor = (m.cursor + 1) % len(m.result.Sources)
				m.viewport.SetContent(m.renderAnswer())
				return m, nil
			}
		case "up":
			if m.result != nil && len(m.result.Sources) > 0 {
				m.cursor = (m.cursor - 1 + len(m.result.Sources)) % len(m.result.Sources)
				m.viewport.SetContent(m.renderAnswer())
				return m, nil
			}
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) ask(q string) tea.Cmd {
	service, sessionID, timeout := m.service, m.sessionID, m.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		id, res, err := service.Query(ctx, sessionID, q)
		return answerMsg{query: q, sessionID: id, result: res, err: err}
	}
}

// View renders the TUI layout and current answer.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("Bangla RAG")
	summary := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(m.summary)
	input := queryBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	results := resultBoxStyle.Render(m.viewport.View())
	return header + "\n" + summary + "\n" + results + "\n" + input + "\n" + status
}

func (m Model) renderAnswer() string {
	if m.result == nil {
		return "No answer yet."
	}
	r := m.result
	var b strings.Builder
	fmt.Fprintf(&b, "%s  language=%s  confidence=%.2f\n\n", answerStyle.Render("Answer"), r.Language, r.Confidence)
	b.WriteString(r.Answer)
	if len(r.Sources) == 0 {
		return b.String()
	}
	src := r.Sources[m.cursor]
	fmt.Fprintf(&b, "\n\nSource %d/%d  distance=%.3f\n\n", m.cursor+1, len(r.Sources), src.Distance)
	b.WriteString(highlightBestSentence(src.Content, m.lastQuery))
	return b.String()
}

var (
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	answerStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	unicodeWordRe  = regexp.MustCompile(`[\p{L}\p{M}\p{N}]+(?:['’][\p{L}\p{M}]+)*`)
	sentenceRe     = regexp.MustCompile(`[^.!?।॥]+[.!?।॥]+`)
)

func highlightBestSentence(text, query string) string {
	sentences, best := bestSentence(text, query)
	if best < 0 {
		return strings.Join(sentences, " ")
	}
	for i := range sentences {
		if i == best {
			sentences[i] = highlightStyle.Render(sentences[i])
		}
	}
	return strings.Join(sentences, " ")
}

// bestSentence splits text into trimmed sentences and returns the index of the
// one sharing the most tokens with query, or -1 when query has no tokens.
func bestSentence(text, query string) ([]string, int) {
	if strings.TrimSpace(text) == "" {
		return []string{text}, -1
	}
	var sentences []string
	end := 0
	for _, loc := range sentenceRe.FindAllStringIndex(text, -1) {
		sentences = append(sentences, strings.TrimSpace(text[loc[0]:loc[1]]))
		end = loc[1]
	}
	// trailing text without a terminator, e.g. a truncated snippet
	if rest := strings.TrimSpace(text[end:]); rest != "" {
		sentences = append(sentences, rest)
	}
	qTokens := toTokenSet(query)
	if len(qTokens) == 0 {
		return sentences, -1
	}
	bestIdx := 0
	bestScore := -1
	for i, s := range sentences {
		score := tokenOverlapScore(qTokens, s)
		if score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}
	return sentences, bestIdx
}

func toTokenSet(s string) map[string]struct{} {
	tokens := unicodeWordRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

func tokenOverlapScore(queryTokens map[string]struct{}, sentence string) int {
	score := 0
	tokens := unicodeWordRe.FindAllString(strings.ToLower(sentence), -1)
	seen := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := queryTokens[t]; ok {
			score++
		}
	}
	return score
}
