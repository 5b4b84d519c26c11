package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/matzehuels/text2block/pkg/errors"
	"github.com/matzehuels/text2block/pkg/pipeline"
	"github.com/matzehuels/text2block/pkg/render"
)

// Chat styles
var (
	chatPromptStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	chatUserStyle   = lipgloss.NewStyle().Foreground(colorWhite)
	chatDimStyle    = lipgloss.NewStyle().Foreground(colorDim)
	chatErrorStyle  = lipgloss.NewStyle().Foreground(colorRed)
	chatBodyStyle   = lipgloss.NewStyle().PaddingLeft(2)
)

// executor runs one diagram request. [*pipeline.Runner] satisfies it.
type executor interface {
	Execute(ctx context.Context, opts pipeline.Options) (*pipeline.Result, error)
}

// chatCommand creates the interactive chat command.
func (c *CLI) chatCommand() *cobra.Command {
	var dir string
	var flags renderFlags

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Describe diagrams interactively, one per message",
		Long: `Chat opens an interactive session. Each message is sent through the full
pipeline; the rendered image is saved in --dir and its explanation is shown
in the transcript. Type "exit" or press Esc to leave.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := c.config()
			if _, err := flags.apply(&cfg); err != nil {
				return err
			}
			runner, err := c.newRunner(ctx, cfg, pipeline.BuildOptions{})
			if err != nil {
				return err
			}
			defer runner.Close()

			m := newChatModel(ctx, runner, dir, render.Format(cfg.Render.Format))
			p := tea.NewProgram(m,
				tea.WithContext(ctx),
				tea.WithInput(cmd.InOrStdin()),
				tea.WithOutput(cmd.OutOrStdout()),
			)
			_, err = p.Run()
			return err
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", ".", "directory for rendered diagrams")
	cmd.Flags().StringVarP(&flags.format, "format", "f", "", "output format: png, jpg, svg")
	cmd.Flags().StringVar(&flags.layout, "layout", "", "graphviz layout")
	cmd.Flags().IntVar(&flags.maxAttempts, "max-attempts", 0, "maximum renders per request")

	return cmd
}

// =============================================================================
// ChatModel
// =============================================================================

// chatEntry is one exchange in the transcript.
type chatEntry struct {
	Prompt      string
	Path        string
	Explanation string
	Attempts    int
	Cached      bool
	Err         error
}

// chatResultMsg carries a finished request back to the model.
type chatResultMsg struct {
	entry chatEntry
}

// chatModel is the bubbletea model for the chat session.
type chatModel struct {
	ctx    context.Context
	runner executor
	dir    string
	format render.Format

	input   []rune
	entries []chatEntry
	pending string
	busy    bool
	width   int
}

func newChatModel(ctx context.Context, runner executor, dir string, format render.Format) chatModel {
	if format == "" {
		format = render.DefaultFormat
	}
	return chatModel{ctx: ctx, runner: runner, dir: dir, format: format}
}

func (m chatModel) Init() tea.Cmd {
	return nil
}

func (m chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			if m.busy {
				return m, nil
			}
			text := strings.TrimSpace(string(m.input))
			m.input = nil
			switch strings.ToLower(text) {
			case "":
				return m, nil
			case "exit", "quit":
				return m, tea.Quit
			}
			m.busy = true
			m.pending = text
			return m, m.produce(text)
		case tea.KeyBackspace:
			if len(m.input) > 0 {
				m.input = m.input[:len(m.input)-1]
			}
		case tea.KeySpace:
			m.input = append(m.input, ' ')
		case tea.KeyRunes:
			m.input = append(m.input, msg.Runes...)
		}
	case chatResultMsg:
		m.entries = append(m.entries, msg.entry)
		m.busy = false
		m.pending = ""
	case tea.WindowSizeMsg:
		m.width = msg.Width
	}
	return m, nil
}

// produce runs the request off the UI goroutine.
func (m chatModel) produce(intent string) tea.Cmd {
	ctx, runner := m.ctx, m.runner
	path := filepath.Join(m.dir, fmt.Sprintf("diagram-%s.%s", uuid.NewString()[:8], m.format))
	return func() tea.Msg {
		entry := chatEntry{Prompt: intent}
		res, err := runner.Execute(ctx, pipeline.Options{
			Intent: intent,
			Dest:   render.NewFileDestination(path),
		})
		if err != nil {
			entry.Err = err
			return chatResultMsg{entry: entry}
		}
		entry.Path = res.Artifact.Location
		entry.Explanation = res.Explanation.Text()
		entry.Attempts = len(res.Attempts)
		entry.Cached = res.Cached
		return chatResultMsg{entry: entry}
	}
}

func (m chatModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("text2block chat"))
	b.WriteString("\n")
	b.WriteString(chatDimStyle.Render("describe a diagram  ⏎ send  esc quit"))
	b.WriteString("\n\n")

	body := chatBodyStyle
	if m.width > 4 {
		body = body.Width(m.width - 2)
	}
	for _, e := range m.entries {
		b.WriteString(chatPromptStyle.Render(iconInfo) + " " + chatUserStyle.Render(e.Prompt) + "\n")
		if e.Err != nil {
			msg := fmt.Sprintf("%s %s", errors.GetCode(e.Err), errors.UserMessage(e.Err))
			if d := errors.DiagnosticOf(e.Err); d != "" {
				msg += "\n" + firstLine(d)
			}
			b.WriteString(body.Render(chatErrorStyle.Render(msg)))
		} else {
			status := plural(e.Attempts, "attempt")
			if e.Cached {
				status += " · " + iconCached
			}
			b.WriteString(body.Render(
				styleIconSuccess.Render(iconSuccess) + " " + e.Path + " " + chatDimStyle.Render("("+status+")") +
					"\n\n" + e.Explanation))
		}
		b.WriteString("\n\n")
	}

	if m.busy {
		b.WriteString(chatPromptStyle.Render(iconInfo) + " " + chatUserStyle.Render(m.pending) + "\n")
		b.WriteString(body.Render(chatDimStyle.Render("generating...")))
		b.WriteString("\n")
		return b.String()
	}
	b.WriteString(chatPromptStyle.Render("> ") + string(m.input) + chatDimStyle.Render("█"))
	b.WriteString("\n")
	return b.String()
}
