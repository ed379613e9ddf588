package cli

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	"golang.org/x/term"

	"black-heatmap/internal/table"
)

const (
	previewRows  = 5
	previewWidth = 24
)

// ask prints prompt and returns the trimmed next line. ok is false at end of
// input or once the running context is cancelled.
func (a *App) ask(prompt string) (string, bool) {
	fmt.Fprint(a.out, prompt)
	a.readOnce.Do(a.startReader)
	select {
	case line, ok := <-a.lines:
		if !ok {
			fmt.Fprintln(a.out)
			return "", false
		}
		return strings.TrimSpace(line), true
	case <-a.done:
		fmt.Fprintln(a.out)
		return "", false
	}
}

// startReader moves the blocking scan off the prompt path. The goroutine
// ends at end of input.
func (a *App) startReader() {
	lines := make(chan string)
	a.lines = lines
	go func() {
		defer close(lines)
		for a.in.Scan() {
			lines <- a.in.Text()
		}
	}()
}

// confirm asks a yes/no question. Empty answers return def.
func (a *App) confirm(prompt string, def bool) bool {
	answer, ok := a.ask(prompt)
	if !ok || answer == "" {
		return def
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

// askPath asks for the input workbook and checks that it exists.
func (a *App) askPath() (string, error) {
	prompt := "Blacklist MID workbook path: "
	if a.opts.InputPath != "" {
		prompt = fmt.Sprintf("Blacklist MID workbook path [%s]: ", a.opts.InputPath)
	}
	path, _ := a.ask(prompt)
	if path == "" {
		path = a.opts.InputPath
	}
	if path == "" {
		return "", fmt.Errorf("%w: workbook path required", ErrInvalidInput)
	}
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("input workbook: %w", err)
	}
	return path, nil
}

// askTime reads an optional timestamp that must match one of layouts.
func (a *App) askTime(prompt string, layouts ...string) (string, error) {
	answer, _ := a.ask(prompt)
	if answer == "" {
		return "", nil
	}
	for _, layout := range layouts {
		if _, err := time.Parse(layout, answer); err == nil {
			return answer, nil
		}
	}
	return "", fmt.Errorf("%w: %q does not match %s", ErrInvalidInput, answer, strings.Join(layouts, " or "))
}

// preview prints the first rows of t as aligned columns.
func (a *App) preview(t *table.Table) {
	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(t.Columns, "\t"))
	for i, row := range t.Rows {
		if i == previewRows {
			break
		}
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = clip(table.Format(v))
		}
		fmt.Fprintln(w, strings.Join(cells, "\t"))
	}
	w.Flush()
	if t.Len() > previewRows {
		fmt.Fprintf(a.out, "... %s more rows\n", count(t.Len()-previewRows))
	}
}

func clip(s string) string {
	if utf8.RuneCountInString(s) <= previewWidth {
		return s
	}
	return string([]rune(s)[:previewWidth-1]) + "…"
}

func count(n int) string {
	return humanize.Comma(int64(n))
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// IsTerminal reports whether fd is an interactive terminal.
func IsTerminal(fd int) bool {
	return term.IsTerminal(fd)
}

// ReadPassword prompts on out and reads a line from fd without echo.
func ReadPassword(fd int, out io.Writer, label string) (string, error) {
	fmt.Fprintf(out, "%s password: ", label)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(out)
	if err != nil {
		return "", fmt.Errorf("read %s password: %w", label, err)
	}
	return string(b), nil
}
