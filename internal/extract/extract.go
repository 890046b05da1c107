package extract

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/text/unicode/norm"
)

// Document is a simplified representation of extracted page content.
type Document struct {
	Title string
	Text  string
}

// noiseSelectors are removed from the tree before any scoring happens.
var noiseSelectors = []string{
	"script", "style", "noscript", "template",
	"nav", "footer", "aside", "header nav",
	"iframe", "svg", "canvas", "video", "audio",
	"form", "button", "input", "select", "textarea",
	".sidebar", ".menu", ".navigation", ".breadcrumb", ".breadcrumbs",
	".ads", ".ad", ".advert", ".advertisement", ".sponsored",
	".share", ".social", ".related", ".comments",
	"[role=navigation]", "[role=banner]", "[role=contentinfo]", "[aria-hidden=true]",
}

// minSemanticChars is how much text a <main> or <article> needs before it is
// trusted over the density scorer.
const minSemanticChars = 200

// FromHTML extracts readable main text from HTML. Boilerplate is stripped,
// <main>/<article> are preferred when they carry enough text, and otherwise
// the block with the best content density is used, falling back to <body>.
func FromHTML(input []byte) Document {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(input))
	if err != nil {
		return Document{}
	}
	title := strings.TrimSpace(doc.Find("head title").First().Text())

	for _, sel := range noiseSelectors {
		doc.Find(sel).Remove()
	}
	doc.Find("*").FilterFunction(func(_ int, s *goquery.Selection) bool {
		if len(s.Nodes) == 0 {
			return false
		}
		switch goquery.NodeName(s) {
		case "html", "body", "main", "article":
			return false
		}
		if s.Find("main, article, [role=main]").Length() > 0 {
			return false
		}
		return isBoilerplateContainer(s.Nodes[0])
	}).Remove()

	root := pickContentRoot(doc)
	if root == nil {
		return Document{Title: title}
	}
	var b strings.Builder
	collectText(&b, root, false)
	text := norm.NFC.String(normalizeWhitespace(b.String()))
	return Document{Title: title, Text: text}
}

func pickContentRoot(doc *goquery.Document) *html.Node {
	for _, tag := range []string{"main", "article", "[role=main]"} {
		s := doc.Find(tag).First()
		if s.Length() > 0 && textLen(s) >= minSemanticChars {
			return s.Nodes[0]
		}
	}
	if best := bestByDensity(doc); best != nil {
		return best
	}
	if body := doc.Find("body").First(); body.Length() > 0 {
		return body.Nodes[0]
	}
	return nil
}

// bestByDensity scores block containers by the amount of non-link text they
// hold, rewarding paragraphs. Scores propagate to parents at half weight so a
// wrapper around several dense paragraphs beats any single one of them.
func bestByDensity(doc *goquery.Document) *html.Node {
	scores := make(map[*html.Node]float64)
	var order []*html.Node
	doc.Find("p, pre, blockquote, li, td").Each(func(_ int, s *goquery.Selection) {
		n := textLen(s)
		if n < 25 {
			return
		}
		score := 1 + float64(n)/100
		if score > 4 {
			score = 4
		}
		score += float64(strings.Count(s.Text(), ","))
		parent := s.Parent()
		for depth := 0; depth < 3 && parent.Length() > 0; depth++ {
			node := parent.Nodes[0]
			if !isContainer(node) {
				break
			}
			if _, seen := scores[node]; !seen {
				order = append(order, node)
			}
			scores[node] += score / float64(int(1)<<depth)
			parent = parent.Parent()
		}
	})

	var best *html.Node
	bestScore := 0.0
	// Walk in document order so ties resolve the same way on every run.
	for _, node := range order {
		s := goquery.NewDocumentFromNode(node).Selection
		score := scores[node] * (1 - linkDensity(s))
		if score > bestScore {
			best, bestScore = node, score
		}
	}
	return best
}

func isContainer(n *html.Node) bool {
	if n == nil || n.Type != html.ElementNode {
		return false
	}
	switch strings.ToLower(n.Data) {
	case "div", "section", "article", "main", "td", "body", "ul", "ol":
		return true
	}
	return false
}

func textLen(s *goquery.Selection) int {
	return utf8.RuneCountInString(strings.Join(strings.Fields(s.Text()), " "))
}

func linkDensity(s *goquery.Selection) float64 {
	total := textLen(s)
	if total == 0 {
		return 0
	}
	links := 0
	s.Find("a").Each(func(_ int, a *goquery.Selection) {
		links += textLen(a)
	})
	return float64(links) / float64(total)
}

func collectText(b *strings.Builder, n *html.Node, inPre bool) {
	if n.Type == html.ElementNode {
		name := strings.ToLower(n.Data)
		switch name {
		case "script", "style", "noscript":
			return
		case "pre", "code":
			inPre = true
		case "br", "hr":
			b.WriteString("\n")
		case "p", "h1", "h2", "h3", "h4", "h5", "h6", "li", "ul", "ol", "tr", "div", "section", "blockquote":
			b.WriteString("\n")
		}
	}

	if n.Type == html.TextNode {
		data := n.Data
		if !inPre {
			data = strings.ReplaceAll(data, "\t", " ")
			data = strings.ReplaceAll(data, "\r", " ")
		}
		b.WriteString(data)
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(b, c, inPre)
	}

	if n.Type == html.ElementNode {
		switch strings.ToLower(n.Data) {
		case "p", "h1", "h2", "h3", "h4", "h5", "h6", "blockquote":
			b.WriteString("\n\n")
		case "li", "tr", "div", "section":
			b.WriteString("\n")
		case "pre":
			b.WriteString("\n")
		case "td", "th":
			b.WriteString(" ")
		}
	}
}

// isBoilerplateContainer returns true if the element looks like a cookie/consent
// banner or a paywall/newsletter overlay. Consent words match anywhere in an
// attribute; overlay names must be a whole class or id token.
func isBoilerplateContainer(n *html.Node) bool {
	if n == nil || n.Type != html.ElementNode {
		return false
	}
	for _, attr := range n.Attr {
		key := strings.ToLower(attr.Key)
		if key != "id" && key != "class" && !strings.HasPrefix(key, "data-") && key != "aria-label" && key != "role" {
			continue
		}
		val := strings.ToLower(attr.Val)
		if containsAny(val, []string{"cookie", "consent", "gdpr"}) {
			return true
		}
		if key == "id" || key == "class" {
			for _, tok := range strings.Fields(val) {
				if overlayTokens[tok] {
					return true
				}
			}
		}
	}
	return false
}

var overlayTokens = map[string]bool{
	"paywall":           true,
	"paywall-overlay":   true,
	"newsletter-signup": true,
	"newsletter-modal":  true,
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

func normalizeWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			// Keep at most one consecutive blank
			if len(out) > 0 && out[len(out)-1] == "" {
				continue
			}
			out = append(out, "")
			continue
		}
		out = append(out, strings.Join(strings.Fields(trimmed), " "))
	}
	for len(out) > 0 && out[0] == "" {
		out = out[1:]
	}
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return strings.Join(out, "\n")
}
