package pagecheck

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/chromedp/chromedp"
)

func TestIsDangerousHref(t *testing.T) {
	tests := []struct {
		href string
		want bool
	}{
		{"javascript:alert(1)", true},
		{"javascript:void(0)", false},
		{"javascript:void(0);", false},
		{"javascript:", false},
		{"javascript:;", false},
		{"javascript:window.history.back();", false},
		{"javascript:window.history.back();;", false},
		{"javascript:window.location.reload()", false},
		{"javascript:void(0);alert(1)", true},
		{"vbscript:msgbox(1)", true},
		{"data:text/html,<script>alert(1)</script>", true},
		{"https://example.com", false},
		{"/relative/path", false},
		{"#anchor", false},
		{"", false},
		{"JAVASCRIPT:alert(1)", false}, // Case-sensitive.
	}
	for _, tt := range tests {
		t.Run(tt.href, func(t *testing.T) {
			if got := IsDangerousHref(tt.href); got != tt.want {
				t.Errorf("IsDangerousHref(%q) = %v, want %v", tt.href, got, tt.want)
			}
		})
	}
}

func TestReportString(t *testing.T) {
	if s := (Report{}).String(); s != "[]" {
		t.Errorf("Expected “[]” for empty report, got %q", s)
	}

	r := Report{Links: []Link{{InnerText: "x", Href: "javascript:alert(1)"}}}
	if r.OK() {
		t.Error("Expected report with links to not be OK")
	}
	if s := r.String(); s != `["x - [href = javascript:alert(1)]"]` {
		t.Errorf("Unexpected serialization: %s", s)
	}

	r = Report{Links: []Link{{InnerText: "x", Href: "data:text/html,<script>alert(1)</script>&a"}}}
	if s := r.String(); s != `["x - [href = data:text/html,<script>alert(1)</script>&a]"]` {
		t.Errorf("Expected href without HTML escaping, got %s", s)
	}

	r = Report{Error: "document is not defined"}
	if r.OK() {
		t.Error("Expected report with error to not be OK")
	}
	if r.String() != "document is not defined" {
		t.Errorf("Expected error text, got %q", r.String())
	}
}

type fakeEvaluator struct {
	result string
	err    error
	calls  int
}

func (f *fakeEvaluator) Evaluate(ctx context.Context, js string, res any) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	*(res.(*string)) = f.result
	return nil
}

func linksJSON(t *testing.T, links ...Link) string {
	t.Helper()
	buf, err := json.Marshal(links)
	if err != nil {
		t.Fatal(err)
	}
	return string(buf)
}

func TestScan(t *testing.T) {
	t.Run("no links", func(t *testing.T) {
		r := Scan(context.Background(), &fakeEvaluator{result: "[]"})
		if !r.OK() {
			t.Errorf("Expected OK, got %s", r)
		}
	})

	t.Run("dangerous link", func(t *testing.T) {
		ev := &fakeEvaluator{result: linksJSON(t,
			Link{InnerText: "home", Href: "/"},
			Link{InnerText: "x", Href: "javascript:alert(1)"},
			Link{InnerText: "back", Href: "javascript:window.history.back();"},
		)}
		r := Scan(context.Background(), ev)
		if len(r.Links) != 1 || r.Links[0].Href != "javascript:alert(1)" {
			t.Errorf("Expected one offending link, got %v", r.Links)
		}
		if ev.calls != 1 {
			t.Errorf("Expected one evaluation, got %d", ev.calls)
		}
	})

	t.Run("in-page exception surfaces as result", func(t *testing.T) {
		r := Scan(context.Background(), &fakeEvaluator{result: "document is not defined"})
		if r.OK() || r.Error != "document is not defined" {
			t.Errorf("Expected in-page error to surface, got %+v", r)
		}
	})

	t.Run("evaluation error surfaces as result", func(t *testing.T) {
		r := Scan(context.Background(), &fakeEvaluator{err: errors.New("target closed")})
		if r.OK() || !strings.Contains(r.Error, "target closed") {
			t.Errorf("Expected evaluation error to surface, got %+v", r)
		}
	})
}

func TestScanHTML(t *testing.T) {
	doc := `<html><body>
		<a href="javascript:alert(1)">bad <b>link</b></a>
		<a href="javascript:void(0)">ok</a>
		<a href="vbscript:msgbox(1)">vb</a>
		<a name="no-href">anchor</a>
		<a href="https://example.com">site</a>
	</body></html>`

	r, err := ScanHTML(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("ScanHTML failed: %v", err)
	}
	if len(r.Links) != 2 {
		t.Fatalf("Expected 2 dangerous links, got %v", r.Links)
	}
	if r.Links[0].InnerText != "bad link" || r.Links[0].Href != "javascript:alert(1)" {
		t.Errorf("Unexpected first link: %+v", r.Links[0])
	}
	if r.Links[1].Href != "vbscript:msgbox(1)" {
		t.Errorf("Unexpected second link: %+v", r.Links[1])
	}
}

type chromedpEvaluator struct{}

func (chromedpEvaluator) Evaluate(ctx context.Context, js string, res any) error {
	return chromedp.Run(ctx, chromedp.Evaluate(js, res))
}

func TestScan_LiveDOM(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping test that requires Chrome/Chromium in short mode")
	}

	tests := []struct {
		name  string
		body  string
		count int
	}{
		{"javascript alert", `<a href="javascript:alert(1)">x</a>`, 1},
		{"void", `<a href="javascript:void(0)">x</a>`, 0},
		{"history back with semicolon", `<a href="javascript:window.history.back();">x</a>`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			ctx, cancel = chromedp.NewContext(ctx)
			defer cancel()

			js := "document.body.innerHTML = " + strconv.Quote(tt.body)
			if err := chromedp.Run(ctx,
				chromedp.Navigate("about:blank"),
				chromedp.Evaluate(js, nil),
			); err != nil {
				t.Fatalf("Failed to set up page: %v", err)
			}

			r := Scan(ctx, chromedpEvaluator{})
			if r.Error != "" {
				t.Fatalf("Scan failed: %s", r.Error)
			}
			if len(r.Links) != tt.count {
				t.Errorf("Expected %d dangerous links, got %v", tt.count, r.Links)
			}
		})
	}
}
