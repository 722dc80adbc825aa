package universe

import (
	"io"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ColumnFromHTML returns the cells of the first table whose header row has a cell named column.
// The table is located by header text, not by its position on the page.
func ColumnFromHTML(r io.Reader, column string) ([]string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse html")
	}

	for _, table := range findAll(doc, atom.Table) {
		rows := findAll(table, atom.Tr)
		if len(rows) == 0 {
			continue
		}

		idx := -1
		for i, cell := range cells(rows[0]) {
			if strings.EqualFold(text(cell), column) {
				idx = i
				break
			}
		}
		if idx < 0 {
			continue
		}

		var out []string
		for _, row := range rows[1:] {
			cs := cells(row)
			if idx < len(cs) {
				out = append(out, text(cs[idx]))
			}
		}
		if len(out) > 0 {
			return out, nil
		}
	}

	return nil, errors.Errorf("no table with a %q column", column)
}

func findAll(n *html.Node, a atom.Atom) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && c.DataAtom == a {
				out = append(out, c)
				// nested tables are scanned separately
				if a == atom.Table {
					continue
				}
			}
			if c.Type == html.ElementNode && c.DataAtom == atom.Table && a == atom.Tr {
				continue
			}
			walk(c)
		}
	}
	walk(n)
	return out
}

func cells(row *html.Node) []*html.Node {
	var out []*html.Node
	for c := row.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && (c.DataAtom == atom.Td || c.DataAtom == atom.Th) {
			out = append(out, c)
		}
	}
	return out
}

func text(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		// footnote markers like [1]
		if n.Type == html.ElementNode && n.DataAtom == atom.Sup {
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(b.String())
}
