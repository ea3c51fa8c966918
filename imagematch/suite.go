package imagematch

import (
	"context"
	"slices"
	"sync"

	"chimbori.dev/imagematch/conf"
	"chimbori.dev/imagematch/pagecheck"
)

// Page is the browser page under test.
type Page interface {
	pagecheck.Evaluator

	// URL returns the address of the page, for reproducing a failure.
	URL(ctx context.Context) string

	// Logs returns console messages captured while rendering the current page.
	Logs() []string
}

// Suite carries everything an assertion needs to know about the test suite it runs in.
// A Suite may be shared by parallel tests as long as they assert on distinct image names.
type Suite struct {
	Title         string // Default prefix for image names.
	BaseDirectory string // Expected & processed directories are resolved relative to this.
	Config        conf.Screenshots
	Comparator    *Comparator

	mu              sync.Mutex
	missingExpected []string
}

// NewSuite returns a Suite with defaults applied to config.
func NewSuite(title, baseDirectory string, config conf.Screenshots) *Suite {
	conf.SetScreenshotDefaults(&config)
	return &Suite{
		Title:         title,
		BaseDirectory: baseDirectory,
		Config:        config,
		Comparator:    NewComparator(config.CompareCommand),
	}
}

// MissingExpected returns the names of images whose expected baseline did not exist, in the
// order they were reported.
func (s *Suite) MissingExpected() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.missingExpected)
}

func (s *Suite) appendMissingExpected(imageName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.missingExpected = append(s.missingExpected, imageName)
}
