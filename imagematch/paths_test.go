package imagematch

import (
	"os"
	"path/filepath"
	"testing"

	"chimbori.dev/imagematch/conf"
	"chimbori.dev/imagematch/core"
)

func TestAssumeImage(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Dashboard_load", "Dashboard_load.png"},
		{"Dashboard_load.png", "Dashboard_load.png"},
		{"Dashboard_load.txt", "Dashboard_load.txt"},
		{"Dashboard_load.jpg", "Dashboard_load.jpg.png"},
		{"archive.png.gz", "archive.png.gz.png"},
		{"", ".png"},
	}
	for _, tt := range tests {
		if got := assumeImage(tt.in); got != tt.want {
			t.Errorf("assumeImage(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestExpectedDir_FirstExistingWins(t *testing.T) {
	base := t.TempDir()
	os.MkdirAll(filepath.Join(base, "second"), 0o755)
	os.MkdirAll(filepath.Join(base, "third"), 0o755)

	s := NewSuite("Suite", base, conf.Screenshots{ExpectedDirs: conf.StringList{"first", "second", "third"}})

	if got, want := s.expectedDir(), filepath.Join(base, "second"); got != want {
		t.Errorf("Expected %s, got %s", want, got)
	}
}

func TestExpectedDir_NoneExist(t *testing.T) {
	base := t.TempDir()
	s := NewSuite("Suite", base, conf.Screenshots{ExpectedDirs: conf.StringList{"first", "second"}})

	if got, want := s.expectedDir(), filepath.Join(base, "first"); got != want {
		t.Errorf("Expected first candidate %s, got %s", want, got)
	}
}

func TestResolvePaths(t *testing.T) {
	base := t.TempDir()
	s := NewSuite("Suite", base, conf.Screenshots{
		ExpectedDirs: conf.StringList{"expected"},
		ProcessedDir: filepath.Join("nested", "processed"),
	})

	paths, err := s.ResolvePaths("Suite_home", "Suite_baseline.txt")
	if err != nil {
		t.Fatalf("ResolvePaths failed: %v", err)
	}

	if want := filepath.Join(base, "expected", "Suite_baseline.txt"); paths.Expected != want {
		t.Errorf("Expected path %s, got %s", want, paths.Expected)
	}
	if want := filepath.Join(base, "nested", "processed", "Suite_home.png"); paths.Processed != want {
		t.Errorf("Processed path %s, got %s", want, paths.Processed)
	}
	if !core.DirExists(filepath.Join(base, "nested", "processed")) {
		t.Error("Expected processed directory to be created")
	}
}

func TestResolvePaths_StoreInUITestsRepo(t *testing.T) {
	base := t.TempDir()
	uiTests := t.TempDir()
	s := NewSuite("Suite", base, conf.Screenshots{
		ProcessedDir:       "processed",
		StoreInUITestsRepo: true,
		UITestsDir:         uiTests,
	})

	paths, err := s.ResolvePaths("Suite_home", "Suite_home")
	if err != nil {
		t.Fatalf("ResolvePaths failed: %v", err)
	}
	if want := filepath.Join(uiTests, "processed", "Suite_home.png"); paths.Processed != want {
		t.Errorf("Processed path %s, got %s", want, paths.Processed)
	}
	// Baselines are still looked up in the suite’s own directory.
	if want := filepath.Join(base, "expected-screenshots", "Suite_home.png"); paths.Expected != want {
		t.Errorf("Expected path %s, got %s", want, paths.Expected)
	}
}

func TestResolvePaths_ProcessedDirBlocked(t *testing.T) {
	base := t.TempDir()
	// A regular file where the processed directory should go.
	os.WriteFile(filepath.Join(base, "processed"), nil, 0o644)
	s := NewSuite("Suite", base, conf.Screenshots{ProcessedDir: "processed"})

	if _, err := s.ResolvePaths("a", "a"); err == nil {
		t.Error("Expected error when processed directory cannot be created")
	}
}
