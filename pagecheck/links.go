// Package pagecheck holds checks that run automatically against a rendered page after its
// screenshot has matched the expected baseline.
package pagecheck

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"slices"
	"strings"

	"github.com/lmittmann/tint"
	"golang.org/x/net/html"
)

// Evaluator runs a JavaScript expression inside the page under test and stores its result in res.
type Evaluator interface {
	Evaluate(ctx context.Context, js string, res any) error
}

// Link is an anchor element as seen in the page.
type Link struct {
	InnerText string `json:"innerText"`
	Href      string `json:"href"`
}

func (l Link) String() string {
	return l.InnerText + " - [href = " + l.Href + "]"
}

// Report is the outcome of a dangerous-link scan. Error is set when the scan itself could not run;
// it is reported as a failure rather than being swallowed.
type Report struct {
	Links []Link
	Error string
}

// OK reports whether the page has no dangerous links and the scan ran cleanly.
func (r Report) OK() bool {
	return r.Error == "" && len(r.Links) == 0
}

// String serializes the offending links as a JSON list of descriptions, or returns the scan error.
func (r Report) String() string {
	if r.Error != "" {
		return r.Error
	}
	descriptions := make([]string, 0, len(r.Links))
	for _, l := range r.Links {
		descriptions = append(descriptions, l.String())
	}
	var sb strings.Builder
	enc := json.NewEncoder(&sb)
	enc.SetEscapeHTML(false) // Hrefs are shown as written, e.g. `data:text/html,<script>`.
	if err := enc.Encode(descriptions); err != nil {
		return fmt.Sprintf("%q", descriptions)
	}
	return strings.TrimSuffix(sb.String(), "\n")
}

var (
	dangerousScheme = regexp.MustCompile(`^(javascript|vbscript|data):`)
	javaScriptBody  = regexp.MustCompile(`^javascript:(.*?);*$`)
)

var allowedJavaScript = []string{
	"",
	"void(0)",
	"window.history.back()",
	"window.location.reload()",
}

// IsDangerousHref reports whether href uses a scheme that can execute code or smuggle content,
// unless it is one of the known-benign `javascript:` snippets.
func IsDangerousHref(href string) bool {
	return dangerousScheme.MatchString(href) && !isAllowedJavaScript(href)
}

func isAllowedJavaScript(href string) bool {
	m := javaScriptBody.FindStringSubmatch(href)
	if m == nil {
		return false
	}
	return slices.Contains(allowedJavaScript, m[1])
}

// Filter returns the dangerous links in links, preserving document order.
func Filter(links []Link) []Link {
	var result []Link
	for _, l := range links {
		if IsDangerousHref(l.Href) {
			result = append(result, l)
		}
	}
	return result
}

// collectLinksJS returns a JSON string of every anchor with an href, or the exception message.
const collectLinksJS = `(function() {
	try {
		var result = [];
		var linkElements = document.getElementsByTagName('a');
		for (var i = 0; i !== linkElements.length; ++i) {
			var element = linkElements.item(i);
			var href = element.getAttribute('href');
			if (href !== null) {
				result.push({innerText: element.innerText || '', href: href});
			}
		}
		return JSON.stringify(result);
	} catch (e) {
		return String(e.message || e);
	}
})()`

// Scan inspects the live DOM of the page for dangerous anchors.
func Scan(ctx context.Context, page Evaluator) Report {
	var out string
	if err := page.Evaluate(ctx, collectLinksJS, &out); err != nil {
		slog.Error("dangerous link scan failed", tint.Err(err))
		return Report{Error: fmt.Sprintf("link scan failed: %s", err)}
	}

	var links []Link
	if !strings.HasPrefix(out, "[") {
		return Report{Error: out}
	}
	if err := json.Unmarshal([]byte(out), &links); err != nil {
		return Report{Error: fmt.Sprintf("link scan returned malformed result: %s", out)}
	}

	report := Report{Links: Filter(links)}
	slog.Debug("scanned links", "total", len(links), "dangerous", len(report.Links))
	return report
}

// ScanHTML applies the same checks as [Scan] to a saved HTML document.
func ScanHTML(r io.Reader) (Report, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return Report{}, err
	}

	var links []Link
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, attr := range n.Attr {
				if attr.Key == "href" {
					links = append(links, Link{InnerText: strings.TrimSpace(textContent(n)), Href: attr.Val})
					break
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return Report{Links: Filter(links)}, nil
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}
