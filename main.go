package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"chimbori.dev/imagematch/browser"
	"chimbori.dev/imagematch/conf"
	"chimbori.dev/imagematch/core"
	"chimbori.dev/imagematch/imagematch"
	"chimbori.dev/imagematch/pagecheck"
	"github.com/lmittmann/tint"
)

func main() {
	tintHandler := tint.NewHandler(os.Stderr, &tint.Options{TimeFormat: "2006-01-02 15:04:05.000"})
	slog.SetDefault(slog.New(tintHandler))

	configYmlFlag := flag.String("config", "imagematch.yml", "path to imagematch.yml")
	urlFlag := flag.String("url", "", "URL of the page to capture")
	nameFlag := flag.String("name", "", "logical name of the screenshot")
	suiteFlag := flag.String("suite", "", "suite title, used to prefix the screenshot name")
	selectorFlag := flag.String("selector", "", "CSS selector of the element to capture; full page if empty")
	compareAgainstFlag := flag.String("compare-against", "", "name of the expected screenshot, if different")
	thresholdFlag := flag.Float64("threshold", 0, "accepted for compatibility; only exact matches pass")
	scanFlag := flag.String("scan", "", "scan a saved HTML file for dangerous links & exit")
	flag.Parse()

	var err error
	if conf.Config, err = conf.ReadConfig(*configYmlFlag); err != nil {
		slog.Error("Failed to parse config", tint.Err(err))
		os.Exit(1)
	}

	// If debug mode was turned on in the config file, print logs at DEBUG or above.
	if conf.Config.Debug {
		tintHandler = tint.NewHandler(os.Stderr, &tint.Options{
			Level:      slog.LevelDebug,
			TimeFormat: "2006-01-02 15:04:05.000",
		})
		slog.SetDefault(slog.New(tintHandler))
	}
	slog.Info(conf.AppName, "build-timestamp", conf.BuildTimestamp)

	// If run with “--scan”, check a saved page and exit.
	if *scanFlag != "" {
		os.Exit(scanFile(*scanFlag))
	}

	if *urlFlag == "" || *nameFlag == "" {
		flag.PrintDefaults()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	req := imagematch.Request{
		ImageName:      *nameFlag,
		CompareAgainst: *compareAgainstFlag,
		Prefix:         *suiteFlag,
	}
	if *thresholdFlag != 0 {
		req.ComparisonThreshold = core.Ptr(*thresholdFlag)
	}
	os.Exit(capture(ctx, *urlFlag, *selectorFlag, req))
}

// capture screenshots url & asserts it against its baseline, returning the process exit code.
func capture(ctx context.Context, url, selector string, req imagematch.Request) int {
	page, err := browser.New(ctx, conf.Config.Debug)
	if err != nil {
		slog.Error("Unable to start browser", tint.Err(err))
		return 1
	}
	defer page.Close()

	timeoutCtx, cancel := context.WithTimeout(ctx, conf.Config.Browser.Timeout)
	defer cancel()

	viewport := conf.Config.Browser.Viewport
	if err := page.Navigate(timeoutCtx, url, viewport.Width, viewport.Height); err != nil {
		slog.Error("Failed to load page", tint.Err(err), "url", url)
		return 1
	}
	png, err := page.Screenshot(timeoutCtx, selector)
	if err != nil {
		slog.Error("Failed to take screenshot", tint.Err(err), "url", url, "selector", selector)
		return 1
	}

	suiteTitle := req.Prefix
	if suiteTitle == "" {
		suiteTitle = "screenshot"
	}
	suite := imagematch.NewSuite(suiteTitle, conf.Config.DataDir, conf.Config.Screenshots)

	// The comparison itself is not bounded by the browser timeout.
	err = suite.MatchImage(ctx, page, png, req)

	var assertionErr *imagematch.AssertionError
	switch {
	case errors.As(err, &assertionErr):
		fmt.Fprintln(os.Stderr, assertionErr.Detail)
		for _, name := range suite.MissingExpected() {
			slog.Warn("Missing expected screenshot", "name", name)
		}
		return 1
	case err != nil:
		slog.Error("Unable to compare screenshot", tint.Err(err))
		return 1
	}

	slog.Info("Screenshot matches", "name", req.ImageName, "url", url)
	return 0
}

// scanFile checks a saved HTML page for dangerous links, returning the process exit code.
func scanFile(path string) int {
	f, err := os.Open(path)
	if err != nil {
		slog.Error("Unable to open file", tint.Err(err), "path", path)
		return 1
	}
	defer f.Close()

	report, err := pagecheck.ScanHTML(f)
	if err != nil {
		slog.Error("Unable to parse HTML", tint.Err(err), "path", path)
		return 1
	}
	if !report.OK() {
		fmt.Fprintln(os.Stderr, "found dangerous links:", report)
		return 1
	}
	slog.Info("No dangerous links found", "path", path)
	return 0
}
