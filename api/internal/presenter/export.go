package presenter

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var md = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
)

var exportPage = template.Must(template.New("export").Parse(`<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}} - Repair Guide</title>
<style>
body { font-family: system-ui, sans-serif; max-width: 48rem; margin: 2rem auto; color: #111; }
blockquote { border: 1px solid #dc2626; border-radius: .75rem; padding: .5rem 1rem; margin: 0 0 1.5rem; color: #7f1d1d; }
ul { list-style: none; padding-left: 0; }
li { break-inside: avoid; margin-bottom: .75rem; }
.badge { display: inline-block; padding: .1rem .6rem; border-radius: 999px; font-size: .75rem; text-transform: uppercase; border: 1px solid; }
.badge-emerald { color: #047857; } .badge-yellow { color: #a16207; } .badge-orange { color: #c2410c; } .badge-red { color: #b91c1c; }
@media print { .no-print { display: none; } }
</style>
</head>
<body>
<p><span class="{{.Badge.Class}}">{{.Badge.Level}}</span></p>
{{.Body}}
<p class="no-print"><button onclick="window.print()">Export to PDF</button></p>
<script>window.addEventListener("load", function () { window.print(); });</script>
</body>
</html>
`))

// Export writes a printable HTML page for v. Pagination and PDF output are left to the browser's print dialog.
func (v View) Export(w io.Writer) error {
	var body bytes.Buffer
	if err := md.Convert([]byte(v.Markdown()), &body); err != nil {
		return fmt.Errorf("render markdown: %w", err)
	}
	return exportPage.Execute(w, struct {
		Title string
		Badge Badge
		Body  template.HTML
	}{
		Title: v.Guide.ItemName,
		Badge: v.Badge,
		// goldmark escapes raw HTML by default (no WithUnsafe)
		Body: template.HTML(body.String()),
	})
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// ExportFileName is a file name for the exported page of item, e.g. "desk-lamp-guide.html".
func ExportFileName(item string) string {
	s := strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(item), "-"), "-")
	if s == "" {
		s = "repair"
	}
	return s + "-guide.html"
}
