package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/matzehuels/text2block/pkg/errors"
	"github.com/matzehuels/text2block/pkg/history"
	"github.com/matzehuels/text2block/pkg/pipeline"
)

// Output formats for history commands.
const (
	outputTable = "table"
	outputJSON  = "json"
	outputYAML  = "yaml"
)

// historyCommand creates the history command.
func (c *CLI) historyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List and inspect past requests",
	}

	cmd.AddCommand(c.historyListCommand())
	cmd.AddCommand(c.historyShowCommand())

	return cmd
}

func (c *CLI) historyListCommand() *cobra.Command {
	var limit int
	var output string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent requests, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkOutput(output); err != nil {
				return err
			}
			store, err := pipeline.OpenHistory(cmd.Context(), c.config())
			if err != nil {
				return err
			}
			defer store.Close()

			recs, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			switch output {
			case outputJSON:
				return writeJSON(w, nonNil(recs))
			case outputYAML:
				return writeYAML(w, nonNil(recs))
			}
			if len(recs) == 0 {
				printInfo(w, "No requests recorded")
				return nil
			}
			fmt.Fprintln(w, historyTable(recs, time.Now()))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", history.DefaultListLimit, "maximum number of requests to list")
	cmd.Flags().StringVarP(&output, "output", "o", outputTable, "output format: table, json, yaml")

	return cmd
}

func (c *CLI) historyShowCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "show ID",
		Short: "Show one request, including the diagnostic of a failed one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkOutput(output); err != nil {
				return err
			}
			if err := errors.ValidateRecordID(args[0]); err != nil {
				return err
			}
			store, err := pipeline.OpenHistory(cmd.Context(), c.config())
			if err != nil {
				return err
			}
			defer store.Close()

			rec, err := store.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			switch output {
			case outputJSON:
				return writeJSON(w, rec)
			case outputYAML:
				return writeYAML(w, rec)
			}
			printRecord(w, rec)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", outputTable, "output format: table, json, yaml")

	return cmd
}

func checkOutput(output string) error {
	switch output {
	case outputTable, outputJSON, outputYAML:
		return nil
	}
	return errors.New(errors.ErrCodeInvalidInput, "unknown output format %q (valid: table, json, yaml)", output)
}

// =============================================================================
// Formatting
// =============================================================================

func historyTable(recs []*history.Record, now time.Time) string {
	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)
	cell := lipgloss.NewStyle().PaddingRight(1)

	rows := make([][]string, len(recs))
	for i, r := range recs {
		rows[i] = []string{
			shortID(r.ID),
			relativeTime(r.CreatedAt, now),
			statusText(r),
			strconv.Itoa(r.Attempts),
			truncate(r.Intent, 48),
		}
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("ID", "Created", "Status", "Attempts", "Request").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return headerStyle
			}
			if col == 2 && row >= 0 && row < len(recs) {
				if recs[row].Status == history.StatusFailed {
					return cell.Foreground(colorRed)
				}
				if recs[row].Cached {
					return cell.Foreground(colorGreen)
				}
			}
			if col == 0 || col == 1 {
				return cell.Foreground(colorDim)
			}
			return cell
		})
	return t.Render()
}

func printRecord(w io.Writer, r *history.Record) {
	printKeyValue(w, "ID", r.ID)
	printKeyValue(w, "Created", r.CreatedAt.Local().Format(time.DateTime))
	printKeyValue(w, "Request", r.Intent)
	printKeyValue(w, "Status", statusText(r))
	if r.Provider != "" {
		printKeyValue(w, "Model", r.Provider+"/"+r.Model)
	}
	printKeyValue(w, "Attempts", strconv.Itoa(r.Attempts))
	printKeyValue(w, "Duration", r.Duration.Round(time.Millisecond).String())
	if r.Location != "" {
		printKeyValue(w, "Output", r.Location)
	}

	if r.Status == history.StatusFailed {
		printKeyValue(w, "Code", string(r.Code))
		if r.Stage != "" {
			printKeyValue(w, "Stage", string(r.Stage))
		}
		printKeyValue(w, "Error", r.Message)
		if r.Diagnostic != "" {
			fmt.Fprintln(w)
			printHeading(w, "Last diagnostic")
			fmt.Fprintln(w, r.Diagnostic)
		}
	}
	if !r.Explanation.IsZero() {
		fmt.Fprintln(w)
		printHeading(w, "Explanation")
		printExplanation(w, r.Explanation.Overview, r.Explanation.Details)
	}
	if r.Description != "" {
		fmt.Fprintln(w)
		printHeading(w, "Description")
		fmt.Fprintln(w, r.Description)
	}
}

func statusText(r *history.Record) string {
	switch {
	case r.Status == history.StatusFailed:
		return string(r.Code)
	case r.Cached:
		return iconCached
	}
	return string(r.Status)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > n {
		return string(r[:n-1]) + "…"
	}
	return s
}

func relativeTime(t, now time.Time) string {
	diff := now.Sub(t)
	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	case diff < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
	default:
		return t.Local().Format("Jan 2, 2006")
	}
}

func nonNil(recs []*history.Record) []*history.Record {
	if recs == nil {
		return []*history.Record{}
	}
	return recs
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeYAML writes v as YAML using its JSON field names.
func writeYAML(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return err
	}
	out, err := yaml.Marshal(doc)
	if err != nil {
		return err
	}
	_, err = w.Write(out)
	return err
}
