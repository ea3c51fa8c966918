package imagematch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// DefaultCompareCommand is ImageMagick’s comparison tool.
const DefaultCompareCommand = "compare"

// waitDelay bounds how long Compare waits for output pipes after the command is killed, since
// children of the command may still hold them open.
const waitDelay = time.Second

// Result is the outcome of a single comparison.
type Result struct {
	PixelError int
	Matched    bool
}

// Comparator runs an external pixel-diff tool to decide whether two images are identical.
type Comparator struct {
	Command string
}

// NewComparator returns a Comparator for the given command, or ImageMagick’s `compare` if empty.
func NewComparator(command string) *Comparator {
	if command == "" {
		command = DefaultCompareCommand
	}
	return &Comparator{Command: command}
}

// Compare runs `<command> -metric ae <expected> <processed> null:` and waits for it to exit.
//
// A non-zero exit means the images differ. Otherwise the absolute pixel error is parsed from
// stdout followed by stderr, and the images match only when it is zero.
//
// threshold is accepted but not applied: only an exact match passes.
func (c *Comparator) Compare(ctx context.Context, expectedPath, processedPath string, threshold *float64) (Result, error) {
	slog.Debug("compare", "command", c.Command, "expected", expectedPath, "processed", processedPath)

	cmd := exec.CommandContext(ctx, c.Command, "-metric", "ae", expectedPath, processedPath, "null:")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay

	err := cmd.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Result{}, fmt.Errorf("comparison interrupted: %w", ctxErr)
	}
	if isCommandNotFound(err) {
		return Result{}, fmt.Errorf("%w: the '%s' command was not found ('compare' is provided by imagemagick)", ErrToolNotFound, c.Command)
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			slog.Debug("compare exited with non-zero status", "status", exitErr.ExitCode())
			return Result{Matched: false}, nil
		}
		// Could not be started at all.
		return Result{}, fmt.Errorf("failed to run '%s': %w", c.Command, err)
	}

	allOutput := stdout.String() + stderr.String()
	pixelError, ok := parseLeadingInt(allOutput)
	if !ok {
		return Result{}, fmt.Errorf("%w: the '%s' command output could not be parsed, should be an integer, got: %s",
			ErrToolOutputUnparseable, c.Command, allOutput)
	}

	result := Result{PixelError: pixelError, Matched: pixelError == 0}
	if !result.Matched && threshold != nil && *threshold != 0 {
		slog.Debug("comparison threshold is not applied; exact match required",
			"threshold", *threshold, "pixel-error", pixelError)
	}
	return result, nil
}

func isCommandNotFound(err error) bool {
	if err == nil {
		return false
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode() == 127
	}
	return errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist)
}

// parseLeadingInt parses an optionally signed integer at the start of s, ignoring leading
// whitespace and anything after the digits, e.g. "12 (0.0018)".
func parseLeadingInt(s string) (int, bool) {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0, false
	}
	n, err := strconv.Atoi(s[:end])
	if errors.Is(err, strconv.ErrRange) {
		if s[0] == '-' {
			return math.MinInt, true
		}
		return math.MaxInt, true
	}
	if err != nil {
		return 0, false
	}
	return n, true
}
