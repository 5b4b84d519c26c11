package cli

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/matzehuels/text2block/pkg/diagram"
	"github.com/matzehuels/text2block/pkg/errors"
	"github.com/matzehuels/text2block/pkg/explain"
	"github.com/matzehuels/text2block/pkg/pipeline"
	"github.com/matzehuels/text2block/pkg/render"
	"github.com/matzehuels/text2block/pkg/repair"
)

// fakeExecutor writes the intent to the destination and explains it.
type fakeExecutor struct {
	calls []pipeline.Options
	err   error
}

func (f *fakeExecutor) Execute(_ context.Context, opts pipeline.Options) (*pipeline.Result, error) {
	f.calls = append(f.calls, opts)
	if f.err != nil {
		return nil, f.err
	}
	if err := opts.Dest.Write([]byte(opts.Intent)); err != nil {
		return nil, err
	}
	return &pipeline.Result{Result: &diagram.Result{
		Artifact:    &render.Artifact{Location: opts.Dest.Location(), Format: render.SVG},
		Explanation: explain.Text("explains " + opts.Intent),
		Attempts:    []repair.Attempt{{Number: 1, Succeeded: true}, {Number: 2, Succeeded: true}},
	}}, nil
}

func typeText(m tea.Model, text string) tea.Model {
	for _, r := range text {
		if r == ' ' {
			m, _ = m.Update(tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
			continue
		}
		m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	return m
}

func TestChatModelSubmitsRequest(t *testing.T) {
	exec := &fakeExecutor{}
	dir := t.TempDir()
	var m tea.Model = newChatModel(context.Background(), exec, dir, render.SVG)

	m = typeText(m, "a to bb")
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyBackspace})
	if got := string(m.(chatModel).input); got != "a to b" {
		t.Fatalf("input = %q, want %q", got, "a to b")
	}

	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatal("enter should start a request")
	}
	cm := m.(chatModel)
	if !cm.busy || len(cm.input) != 0 {
		t.Errorf("after enter: busy=%v input=%q", cm.busy, string(cm.input))
	}
	if !strings.Contains(cm.View(), "generating") {
		t.Error("busy view should show progress")
	}

	// Input is ignored while a request runs.
	if _, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter}); cmd != nil {
		t.Error("enter while busy should not start another request")
	}

	msg := cmd()
	m, _ = m.Update(msg)
	cm = m.(chatModel)
	if cm.busy || len(cm.entries) != 1 {
		t.Fatalf("after result: busy=%v entries=%d", cm.busy, len(cm.entries))
	}

	e := cm.entries[0]
	if e.Prompt != "a to b" || e.Attempts != 2 || e.Err != nil {
		t.Errorf("entry = %+v", e)
	}
	if filepath.Dir(e.Path) != dir || !strings.HasSuffix(e.Path, ".svg") || !strings.HasPrefix(filepath.Base(e.Path), "diagram-") {
		t.Errorf("artifact path = %q", e.Path)
	}
	view := cm.View()
	for _, want := range []string{"a to b", "explains a to b", "2 attempts", e.Path} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestChatModelShowsErrors(t *testing.T) {
	exec := &fakeExecutor{err: errors.New(errors.ErrCodeRetryBudgetExhausted, "renderer rejected every attempt").
		WithDiagnostic("syntax error in line 2\nnear '}'")}
	var m tea.Model = newChatModel(context.Background(), exec, t.TempDir(), "")

	m = typeText(m, "x")
	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m, _ = m.Update(cmd())

	view := m.View()
	for _, want := range []string{"RETRY_BUDGET_EXHAUSTED", "syntax error in line 2"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
	if strings.Contains(view, "near '}'") {
		t.Error("only the first diagnostic line should be shown")
	}
}

func TestChatModelQuit(t *testing.T) {
	tests := []struct {
		name string
		keys []tea.KeyMsg
	}{
		{"esc", []tea.KeyMsg{{Type: tea.KeyEsc}}},
		{"ctrl+c", []tea.KeyMsg{{Type: tea.KeyCtrlC}}},
		{"exit", []tea.KeyMsg{{Type: tea.KeyRunes, Runes: []rune("exit")}, {Type: tea.KeyEnter}}},
		{"quit", []tea.KeyMsg{{Type: tea.KeyRunes, Runes: []rune("QUIT")}, {Type: tea.KeyEnter}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := &fakeExecutor{}
			var m tea.Model = newChatModel(context.Background(), exec, t.TempDir(), render.PNG)
			var cmd tea.Cmd
			for _, k := range tt.keys {
				m, cmd = m.Update(k)
			}
			if cmd == nil {
				t.Fatal("expected a quit command")
			}
			if _, ok := cmd().(tea.QuitMsg); !ok {
				t.Error("command should quit")
			}
			if len(exec.calls) != 0 {
				t.Error("quitting should not run a request")
			}
		})
	}
}

func TestChatModelIgnoresBlankInput(t *testing.T) {
	var m tea.Model = newChatModel(context.Background(), &fakeExecutor{}, t.TempDir(), render.PNG)
	m = typeText(m, "   ")
	if _, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter}); cmd != nil {
		t.Error("blank input should not start a request")
	}
}
