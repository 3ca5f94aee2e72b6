package extract

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"github.com/AlexandroFSD/price-tracker/internal/price"
	"github.com/AlexandroFSD/price-tracker/logger"
)

// Extractor locates a price inside fetched page markup by trying an ordered
// list of selector expressions. A selector starting with "/" or "./" is a
// path-query and runs on the injected Engine; anything else is treated as a
// CSS selector. The first selector whose extracted text normalizes to a
// price wins.
type Extractor struct {
	engine Engine
	log    *logger.Logger
}

// NewExtractor creates an extractor. A nil engine disables path-query
// selectors: they are skipped with a warning and only CSS selectors run.
func NewExtractor(engine Engine) *Extractor {
	return &Extractor{
		engine: engine,
		log:    logger.ForComponent("extractor"),
	}
}

// Price extracts the first parsable price from markup using the selectors in
// order. The second return value is false when no selector produced one.
func (e *Extractor) Price(markup []byte, selectors []string) (float64, bool) {
	if len(markup) == 0 || len(selectors) == 0 {
		return 0, false
	}

	if e.engine == nil {
		selectors = e.dropPathQueries(selectors)
		if len(selectors) == 0 {
			return 0, false
		}
	}

	root, err := html.Parse(bytes.NewReader(markup))
	if err != nil {
		e.log.Error().Err(err).Msg("Failed to parse HTML content")
		return 0, false
	}
	doc := goquery.NewDocumentFromNode(root)

	for _, selector := range selectors {
		raw := e.rawText(root, doc, selector)
		if raw == "" {
			e.log.Debug().Str("selector", selector).Msg("Selector yielded no text")
			continue
		}

		value, err := price.Normalize(raw)
		if err != nil {
			e.log.Debug().
				Str("selector", selector).
				Str("text", raw).
				Msg("Matched text is not a parsable price")
			continue
		}

		e.log.Debug().
			Str("selector", selector).
			Float64("price", value).
			Msg("Extracted price")
		return value, true
	}

	return 0, false
}

// rawText evaluates one selector and returns the raw candidate text, or ""
// when the selector matched nothing. Errors evaluating a selector are local:
// they are logged and treated as a miss.
func (e *Extractor) rawText(root *html.Node, doc *goquery.Document, selector string) string {
	if isPathQuery(selector) {
		nodes, err := e.engine.Query(root, strings.TrimSpace(selector))
		if err != nil {
			e.log.Warn().Err(err).Str("selector", selector).Msg("Path-query failed")
			return ""
		}
		if len(nodes) == 0 {
			return ""
		}
		if isAttributeQuery(selector) {
			// Attribute queries yield value strings, not elements.
			return strings.TrimSpace(nodeText(nodes[0]))
		}
		return elementText(nodes[0])
	}

	matcher, err := cascadia.Compile(strings.TrimSpace(selector))
	if err != nil {
		e.log.Warn().Err(err).Str("selector", selector).Msg("Invalid CSS selector")
		return ""
	}
	sel := doc.FindMatcher(matcher)
	if sel.Length() == 0 {
		return ""
	}
	return elementText(sel.Nodes[0])
}

// dropPathQueries filters out path-query selectors when no engine is
// available, keeping the CSS ones.
func (e *Extractor) dropPathQueries(selectors []string) []string {
	kept := make([]string, 0, len(selectors))
	for _, s := range selectors {
		if isPathQuery(s) {
			e.log.Warn().Str("selector", s).Msg("No path-query engine available, skipping selector")
			continue
		}
		kept = append(kept, s)
	}
	return kept
}

func isPathQuery(selector string) bool {
	s := strings.TrimSpace(selector)
	return strings.HasPrefix(s, "/") || strings.HasPrefix(s, "./")
}

// isAttributeQuery reports whether the final path segment targets an
// attribute, e.g. //span[@class='price']/@data-price.
func isAttributeQuery(selector string) bool {
	segments := strings.Split(strings.TrimSpace(selector), "/")
	return strings.HasPrefix(segments[len(segments)-1], "@")
}

// elementText extracts the element's textual content: all descendant text
// concatenated in document order, so a price split across nested inline
// tags comes out whole. When that yields nothing it falls back to the
// element's direct text plus each immediate child's text and trailing text.
func elementText(n *html.Node) string {
	if text := strings.TrimSpace(nodeText(n)); text != "" {
		return text
	}

	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.TextNode:
			b.WriteString(c.Data)
		case html.ElementNode:
			for gc := c.FirstChild; gc != nil; gc = gc.NextSibling {
				if gc.Type == html.TextNode {
					b.WriteString(gc.Data)
				}
			}
		}
	}
	return strings.TrimSpace(b.String())
}

// nodeText concatenates every text node under n in document order.
func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			b.WriteString(node.Data)
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}
