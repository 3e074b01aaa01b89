package dashboard

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// taskTable is the index of the table listing in-flight tasks on a worker
// page.
const taskTable = 2

type workerLink struct {
	Name string
	Href string
}

// parseWorkerLinks returns the first-cell link of every data row on the
// workers index page.
func parseWorkerLinks(body []byte) ([]workerLink, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	rows := findAll(doc, "tr")
	if len(rows) == 0 {
		return nil, errors.New("no table rows")
	}
	var out []workerLink
	for _, tr := range rows[1:] {
		td := findFirst(tr, "td")
		if td == nil {
			continue
		}
		a := findFirst(td, "a")
		if a == nil {
			continue
		}
		href := attr(a, "href")
		if href == "" {
			continue
		}
		out = append(out, workerLink{Name: strings.TrimSpace(text(a)), Href: href})
	}
	return out, nil
}

// countTasks returns the number of data rows in the task table of a worker
// page.
func countTasks(body []byte) (int, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	tables := findAll(doc, "table")
	if len(tables) <= taskTable {
		return 0, fmt.Errorf("expected at least %d tables, found %d", taskTable+1, len(tables))
	}
	rows := findAll(tables[taskTable], "tr")
	if len(rows) == 0 {
		return 0, nil
	}
	return len(rows) - 1, nil
}

func findAll(n *html.Node, tag string) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.ElementNode && node.Data == tag {
			out = append(out, node)
		}
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(n)
	return out
}

func findFirst(n *html.Node, tag string) *html.Node {
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == html.ElementNode && child.Data == tag {
			return child
		}
		if found := findFirst(child, tag); found != nil {
			return found
		}
	}
	return nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func text(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			b.WriteString(node.Data)
		}
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(n)
	return b.String()
}
