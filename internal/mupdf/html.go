package mupdf

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/joseph-ayodele/submissions-pipeline/internal/extract"
)

// parsePageHTML reads MuPDF's structured-text HTML for one page. Each <p>
// becomes a text span, each <table> a table and each <img> a picture whose
// alt/title text is kept as a caption.
func parsePageHTML(page int, markup string) ([]extract.Element, error) {
	root, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return nil, err
	}

	var out []extract.Element
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "p":
				if t := strings.TrimSpace(collapse(textOf(n))); t != "" {
					out = append(out, extract.Text{Page: page, Content: t})
				}
				return
			case "table":
				if rows := tableRows(n); len(rows) > 0 {
					out = append(out, extract.Table{Page: page, Rows: rows})
				}
				return
			case "img":
				var caps []string
				for _, a := range n.Attr {
					if a.Key == "alt" || a.Key == "title" {
						caps = append(caps, a.Val)
					}
				}
				out = append(out, extract.Picture{Page: page, CaptionText: caps})
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return out, nil
}

func textOf(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch {
		case n.Type == html.TextNode:
			sb.WriteString(n.Data)
		case n.Type == html.ElementNode && n.Data == "br":
			sb.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

func tableRows(t *html.Node) [][]string {
	var rows [][]string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "tr" {
			var row []string
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.ElementNode && (c.Data == "td" || c.Data == "th") {
					row = append(row, strings.TrimSpace(collapse(textOf(c))))
				}
			}
			if len(row) > 0 {
				rows = append(rows, row)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(t)
	return rows
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
