package report

import (
	"bytes"
	"errors"
	"io/fs"
	"os"
	"strings"
	"text/template"

	"github.com/nholik/space-sentinel/internal/fsutil"
)

var summaryTemplate = template.Must(template.New("summary").Funcs(template.FuncMap{
	"cell": markdownCell,
}).Parse(`# Space status report

- Last updated: {{ .Timestamp }}
- Legend: RUNNING=serving, WAKING_UP=starting, ERROR=rebuild triggered

| Space | Action | State | OK | Duration | Note |
|---|---|---|---:|---:|---|
{{ range .Rows }}| {{ cell .Space }} | {{ .Action }} | {{ .State }} | {{ .Icon }} | {{ .Duration }} | {{ cell .Note }} |
{{ end }}`))

func markdownCell(value string) string {
	value = strings.ReplaceAll(value, "|", `\|`)
	return strings.Join(strings.Fields(value), " ")
}

func renderSummary(timestamp string, rows []row) (string, error) {
	var buf bytes.Buffer
	err := summaryTemplate.Execute(&buf, struct {
		Timestamp string
		Rows      []row
	}{timestamp, rows})
	return buf.String(), err
}

// writeMarkdown prepends the summary above the previous contents of path.
func writeMarkdown(path, timestamp string, rows []row) error {
	summary, err := renderSummary(timestamp, rows)
	if err != nil {
		return err
	}

	old, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	return fsutil.WriteFileAtomic(path, []byte(summary+"\n---\n\n"+string(old)), 0o644)
}
