package imagematch

import (
	"os"
	"path/filepath"
	"strings"

	"chimbori.dev/imagematch/core"
	"github.com/dustin/go-humanize"
	"github.com/pmezard/go-difflib/difflib"
)

const indent = "     "

// Diagnostic describes a failed assertion in enough detail to reproduce & inspect it.
type Diagnostic struct {
	ImageName       string
	Message         string
	ReproductionURL string
	Paths           Paths  // As resolved, whether or not the files exist.
	Processed       string // Absolute path, or "" if the file does not exist.
	Expected        string // Absolute path, or "" if the file does not exist.
	PageLogs        []string
	PreviewPath     string
	PreviewSize     int
	TextDiff        string
}

// newDiagnostic fills in the file-system parts of a Diagnostic.
func newDiagnostic(imageName, message, url string, paths Paths, pageLogs []string) Diagnostic {
	return Diagnostic{
		ImageName:       imageName,
		Message:         message,
		ReproductionURL: url,
		Paths:           paths,
		Processed:       absIfExists(paths.Processed),
		Expected:        absIfExists(paths.Expected),
		PageLogs:        pageLogs,
	}
}

func absIfExists(path string) string {
	exists, err := core.FileExists(path)
	if err != nil || !exists {
		return ""
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return abs
}

// String renders the diagnostic as an indented, multi-line block for test output.
func (d Diagnostic) String() string {
	processed := d.Processed
	if processed == "" {
		processed = d.Paths.Processed + " (not found)"
	}
	expected := d.Expected
	if expected == "" {
		expected = d.Paths.Expected + " (not found)"
	}

	var sb strings.Builder
	sb.WriteString(d.Message + "\n")
	sb.WriteString(indent + "Url to reproduce: " + d.ReproductionURL + "\n")
	sb.WriteString(indent + "Generated screenshot: " + processed + "\n")
	sb.WriteString(indent + "Expected screenshot: " + expected + "\n")
	if d.PreviewPath != "" {
		sb.WriteString(indent + "Preview: " + d.PreviewPath + " (" + humanize.Bytes(uint64(d.PreviewSize)) + ")\n")
	}
	if d.TextDiff != "" {
		sb.WriteString("\n" + indent + "Diff:\n" + indentLines(strings.TrimSuffix(d.TextDiff, "\n")) + "\n")
	}
	sb.WriteString(pageLogsString(d.PageLogs))
	return sb.String()
}

// pageLogsString renders console output captured from the page, or "" when there is none.
func pageLogsString(pageLogs []string) string {
	if len(pageLogs) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("\n\n" + indent + "Rendering logs:\n")
	for _, message := range pageLogs {
		sb.WriteString(indentLines(message) + "\n")
	}
	return strings.TrimSuffix(sb.String(), "\n")
}

func indentLines(s string) string {
	return indent + "  " + strings.ReplaceAll(s, "\n", "\n"+indent+"  ")
}

// textDiff returns a unified diff between two text baselines, or "" if either is unreadable.
func textDiff(expectedPath, processedPath string) string {
	expected, err := os.ReadFile(expectedPath)
	if err != nil {
		return ""
	}
	processed, err := os.ReadFile(processedPath)
	if err != nil {
		return ""
	}
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(expected)),
		B:        difflib.SplitLines(string(processed)),
		FromFile: "expected",
		ToFile:   "processed",
		Context:  3,
	})
	if err != nil {
		return ""
	}
	return diff
}
