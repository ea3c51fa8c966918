package imagematch

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"chimbori.dev/imagematch/core"
)

// Paths are the files a single assertion reads from & writes to.
type Paths struct {
	Expected  string
	Processed string
}

// assumeImage treats any file that is not explicitly .png or .txt as a PNG image.
func assumeImage(filename string) string {
	if !strings.HasSuffix(filename, ".png") && !strings.HasSuffix(filename, ".txt") {
		return filename + ".png"
	}
	return filename
}

// expectedDir returns the first configured expected-screenshot directory that exists, falling
// back to the first candidate so that a missing baseline is reported against a stable path.
func (s *Suite) expectedDir() string {
	candidates := s.Config.ExpectedDirs
	if len(candidates) == 0 {
		return s.BaseDirectory
	}
	for _, dir := range candidates {
		path := filepath.Join(s.BaseDirectory, dir)
		if core.DirExists(path) {
			return path
		}
	}
	return filepath.Join(s.BaseDirectory, candidates[0])
}

func (s *Suite) expectedFilePath(fileName string) string {
	return filepath.Join(s.expectedDir(), assumeImage(fileName))
}

// processedFilePath returns where a fresh capture is written, creating its directory if needed.
func (s *Suite) processedFilePath(fileName string) (string, error) {
	root := s.BaseDirectory
	if s.Config.StoreInUITestsRepo {
		root = s.Config.UITestsDir
	}
	dir := filepath.Join(root, s.Config.ProcessedDir)

	if !core.DirExists(dir) {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("failed to create processed screenshots directory: %w", err)
		}
	}
	return filepath.Join(dir, assumeImage(fileName)), nil
}

// ResolvePaths computes the expected & processed paths for an already-prefixed image name and
// the name of the baseline to compare against.
func (s *Suite) ResolvePaths(imageName, compareAgainst string) (Paths, error) {
	processed, err := s.processedFilePath(imageName)
	if err != nil {
		return Paths{}, err
	}
	return Paths{
		Expected:  s.expectedFilePath(compareAgainst),
		Processed: processed,
	}, nil
}
