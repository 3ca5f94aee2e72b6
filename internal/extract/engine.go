package extract

import (
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// Engine evaluates a path-query expression against a parsed document. It is
// injected into the Extractor so tests can substitute a stub and so a build
// without an engine degrades to CSS-only extraction.
type Engine interface {
	Query(root *html.Node, expr string) ([]*html.Node, error)
}

// XPathEngine is the default Engine, backed by antchfx/htmlquery. Attribute
// steps yield synthetic nodes whose text is the attribute value.
type XPathEngine struct{}

// Query runs an XPath expression and returns the matched nodes.
func (XPathEngine) Query(root *html.Node, expr string) ([]*html.Node, error) {
	return htmlquery.QueryAll(root, expr)
}
