package conv

import (
	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/microcosm-cc/bluemonday"
)

var (
	extensions   = parser.CommonExtensions | parser.NoEmptyLineBeforeBlock
	htmlFlags    = html.CommonFlags | html.HrefTargetBlank
	exportPolicy = bluemonday.UGCPolicy()
)

func init() {
	// fenced code keeps its language hint for client-side highlighting
	exportPolicy.AllowAttrs("class").Matching(bluemonday.SpaceSeparatedTokens).OnElements("code")
	exportPolicy.AddTargetBlankToFullyQualifiedLinks(true)
}

// MarkdownToHTML renders assistant markdown into HTML that is safe to embed in a page.
func MarkdownToHTML(md []byte) string {
	p := parser.NewWithExtensions(extensions)
	renderer := html.NewRenderer(html.RendererOptions{Flags: htmlFlags})
	unsafeHTML := markdown.Render(p.Parse(md), renderer)

	return string(exportPolicy.SanitizeBytes(unsafeHTML))
}

// EscapeText sanitizes plain text with the strictest policy, for prompts echoed into HTML.
func EscapeText(s string) string {
	return bluemonday.StrictPolicy().Sanitize(s)
}
