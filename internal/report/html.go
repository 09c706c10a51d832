package report

import (
	"bytes"
	"html/template"
	"os"
	"strings"

	"github.com/nholik/space-sentinel/internal/fsutil"
)

const contentMarker = `<div id="content">`

const basePage = `<!DOCTYPE html><html><head><meta charset="utf-8"><title>Spaces status</title>
<style>
body{font-family:sans-serif;max-width:900px;margin:24px auto;padding:0 12px;}
.log-entry{margin:12px 0;border:1px solid #ddd;padding:10px;border-radius:8px;background:#fafafa;}
.timestamp{font-weight:bold;color:#333;}
.success{color:#1a7f37;}
.failure{color:#d1242f;}
h1{font-size:20px}
</style></head><body>
<h1>Spaces status</h1>
<div id="content"></div>
</body></html>
`

var entryTemplate = template.Must(template.New("entry").Parse(
	`<div class="log-entry"><span class="timestamp">{{ .Timestamp }}</span><br>` +
		`{{ range .Rows }}{{ .Space }}: <span class="{{ .Class }}">{{ .Icon }}</span> [{{ .Action }} -&gt; {{ .State }}] ({{ .Duration }}) {{ .Note }}<br>{{ end }}` +
		`</div>`))

func renderEntry(timestamp string, rows []row) (string, error) {
	var buf bytes.Buffer
	err := entryTemplate.Execute(&buf, struct {
		Timestamp string
		Rows      []row
	}{timestamp, rows})
	return buf.String(), err
}

// insertEntry places entry at the top of the content container, newest first.
func insertEntry(page, entry string) string {
	pos := strings.Index(page, contentMarker)
	if pos < 0 {
		return strings.Replace(basePage, contentMarker+"</div>", contentMarker+entry+"</div>", 1)
	}
	pos += len(contentMarker)
	return page[:pos] + entry + page[pos:]
}

func writeHTML(path, timestamp string, rows []row) error {
	entry, err := renderEntry(timestamp, rows)
	if err != nil {
		return err
	}

	page := basePage
	if data, err := os.ReadFile(path); err == nil {
		page = string(data)
	}

	return fsutil.WriteFileAtomic(path, []byte(insertEntry(page, entry)), 0o644)
}
