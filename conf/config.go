package conf

// App-specific configuration structs & data.
// Must live in a package of its own so other packages within the app can depend on it without
// causing a circular dependency.

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

var AppName = "ImageMatch"

var BuildTimestamp string

var Config AppConfig

type AppConfig struct {
	DataDir     string // The directory containing `imagematch.yml`; relative screenshot paths resolve against it.
	Screenshots Screenshots `yaml:"screenshots"`
	Browser     struct {
		Timeout  time.Duration `yaml:"timeout"`
		Viewport struct {
			Width  int64 `yaml:"width"`
			Height int64 `yaml:"height"`
		} `yaml:"viewport"`
	} `yaml:"browser"`
	Debug bool `yaml:"debug"`
}

// Screenshots configures where baselines are read from, where fresh captures are written to,
// and which tool compares them.
type Screenshots struct {
	ExpectedDirs       StringList `yaml:"expected-dirs"`
	ProcessedDir       string     `yaml:"processed-dir"`
	PreviewDir         string     `yaml:"preview-dir"`
	StoreInUITestsRepo bool       `yaml:"store-in-ui-tests-repo"`
	UITestsDir         string     `yaml:"ui-tests-dir"`
	CompareCommand     string     `yaml:"compare-command"`
}

// StringList accepts either a single YAML string or a sequence of strings.
type StringList []string

func (l *StringList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		var s string
		if err := value.Decode(&s); err != nil {
			return err
		}
		*l = StringList{s}
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := value.Decode(&list); err != nil {
			return err
		}
		*l = list
		return nil
	default:
		return fmt.Errorf("line %d: expected a string or a list of strings", value.Line)
	}
}

var configYmlPath string

func ReadConfig(configYmlFile string) (AppConfig, error) {
	if BuildTimestamp == "" {
		BuildTimestamp = time.Now().Local().Format("2006-01-02 15:04:05")
	}

	c := &AppConfig{}
	var err error
	configYmlPath, err = filepath.Abs(configYmlFile)
	if err != nil {
		setDefaultsAndPrint(c)
		return *c, fmt.Errorf("Failed to get path to config file: %w", err)
	}

	buf, err := os.ReadFile(configYmlPath)
	if err != nil {
		setDefaultsAndPrint(c)
		return *c, fmt.Errorf("Failed to read config file: %w", err)
	}

	err = yaml.Unmarshal(buf, c)
	if err != nil {
		setDefaultsAndPrint(c)
		return *c, fmt.Errorf("Failed to parse config: %w", err)
	}

	setDefaultsAndPrint(c)
	return *c, err
}

// SetScreenshotDefaults fills in unset screenshot settings. Exported so callers that build a
// [Screenshots] by hand (e.g. tests) get the same defaults as a parsed config file.
func SetScreenshotDefaults(s *Screenshots) {
	if len(s.ExpectedDirs) == 0 {
		s.ExpectedDirs = StringList{"expected-screenshots"}
	}
	if s.ProcessedDir == "" {
		s.ProcessedDir = "processed-screenshots"
	}
	if s.CompareCommand == "" {
		s.CompareCommand = "compare"
	}
}

func setDefaultsAndPrint(c *AppConfig) {
	c.DataDir = filepath.Dir(configYmlPath)
	SetScreenshotDefaults(&c.Screenshots)

	if c.Browser.Timeout == 0 {
		c.Browser.Timeout = 30 * time.Second
	}
	if c.Browser.Viewport.Width == 0 {
		c.Browser.Viewport.Width = 1280
	}
	if c.Browser.Viewport.Height == 0 {
		c.Browser.Viewport.Height = 1024
	}

	json, _ := json.MarshalIndent(*c, "", "\t")
	fmt.Println(string(json))
	if c.Debug {
		slog.Warn("Debug mode is enabled")
	}

	if c.Screenshots.StoreInUITestsRepo && c.Screenshots.UITestsDir == "" {
		slog.Warn("store-in-ui-tests-repo is set without ui-tests-dir; processed screenshots go to the working directory")
	}
}
