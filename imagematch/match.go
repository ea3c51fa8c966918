package imagematch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"chimbori.dev/imagematch/core"
	"chimbori.dev/imagematch/pagecheck"
	"github.com/dustin/go-humanize"
	"github.com/lmittmann/tint"
)

const previewWidth = 600

// Request names the screenshot being asserted and the baseline it should match.
type Request struct {
	ImageName string

	// CompareAgainst names the baseline; defaults to the prefixed ImageName. It is not prefixed.
	CompareAgainst string

	// ComparisonThreshold is accepted for compatibility but not applied; see [Comparator.Compare].
	ComparisonThreshold *float64

	// Prefix namespaces ImageName; defaults to the suite title.
	Prefix string
}

// MatchImage writes png to the processed-screenshots directory and asserts that it matches the
// expected baseline. On a match, the page is scanned for dangerous links.
//
// Every assertion failure is returned as an *[AssertionError]; other errors mean the assertion
// could not run at all.
func (s *Suite) MatchImage(ctx context.Context, page Page, png []byte, req Request) error {
	prefix := req.Prefix
	if prefix == "" {
		prefix = s.Title
	}
	imageName := prefix + "_" + req.ImageName
	compareAgainst := req.CompareAgainst
	if compareAgainst == "" {
		compareAgainst = imageName
	}
	imageName = assumeImage(imageName)
	compareAgainst = assumeImage(compareAgainst)

	if len(png) == 0 {
		return fmt.Errorf("%s: %w", imageName, ErrEmptyScreenshot)
	}

	paths, err := s.ResolvePaths(imageName, compareAgainst)
	if err != nil {
		return err
	}

	// Always leave the fresh capture on disk, so failing runs can be inspected.
	if err := core.WriteFile(paths.Processed, png); err != nil {
		return fmt.Errorf("failed to write processed screenshot: %w", err)
	}
	slog.Debug("processed screenshot written", "path", paths.Processed, "size", humanize.Bytes(uint64(len(png))))

	exists, err := core.FileExists(paths.Expected)
	if err != nil {
		return fmt.Errorf("failed to check expected screenshot: %w", err)
	}
	if !exists {
		s.appendMissingExpected(imageName)
		return s.fail(ctx, page, KindMissingBaseline, imageName, paths,
			fmt.Sprintf("expected file at '%s' does not exist", paths.Expected))
	}

	result, err := s.Comparator.Compare(ctx, paths.Expected, paths.Processed, req.ComparisonThreshold)
	switch {
	case errors.Is(err, ErrToolNotFound):
		return s.fail(ctx, page, KindToolNotFound, imageName, paths, err.Error())
	case errors.Is(err, ErrToolOutputUnparseable):
		return s.fail(ctx, page, KindToolOutputUnparseable, imageName, paths, err.Error())
	case err != nil:
		return err
	}
	if !result.Matched {
		return s.fail(ctx, page, KindImagesDiffer, imageName, paths,
			fmt.Sprintf("expected screenshot to match %s", paths.Expected))
	}

	report := pagecheck.Scan(ctx, page)
	if !report.OK() {
		return s.fail(ctx, page, KindDangerousLinkFound, imageName, paths,
			fmt.Sprintf("found dangerous links: expected %s to equal []", report))
	}

	slog.Debug("screenshot matched", "name", imageName, "expected", paths.Expected)
	return nil
}

// fail builds the diagnostic for a failed assertion and wraps it in an *AssertionError.
func (s *Suite) fail(ctx context.Context, page Page, kind Kind, imageName string, paths Paths, message string) error {
	d := newDiagnostic(imageName, message, page.URL(ctx), paths, page.Logs())

	if kind == KindImagesDiffer {
		if strings.HasSuffix(paths.Processed, ".txt") && strings.HasSuffix(paths.Expected, ".txt") {
			d.TextDiff = textDiff(paths.Expected, paths.Processed)
		} else if s.Config.PreviewDir != "" {
			d.PreviewPath, d.PreviewSize = s.writePreview(paths.Processed)
		}
	}

	slog.Info("screenshot assertion failed", "name", imageName, "kind", kind, "url", d.ReproductionURL)
	return &AssertionError{
		Kind:       kind,
		Message:    message,
		Detail:     d.String(),
		Diagnostic: d,
	}
}

// writePreview stores a WebP thumbnail of the processed screenshot, returning its path & size,
// or "" if no preview could be written.
func (s *Suite) writePreview(processedPath string) (string, int) {
	png, err := os.ReadFile(processedPath)
	if err != nil {
		slog.Error("failed to read processed screenshot for preview", tint.Err(err), "path", processedPath)
		return "", 0
	}
	webp, err := core.WebPPreview(png, previewWidth)
	if err != nil {
		slog.Error("failed to encode preview", tint.Err(err), "path", processedPath)
		return "", 0
	}

	dir := s.Config.PreviewDir
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(s.BaseDirectory, dir)
	}
	previewPath := filepath.Join(dir, strings.TrimSuffix(filepath.Base(processedPath), ".png")+".webp")
	if err := core.WriteFile(previewPath, webp); err != nil {
		slog.Error("failed to write preview", tint.Err(err), "path", previewPath)
		return "", 0
	}
	return previewPath, len(webp)
}
