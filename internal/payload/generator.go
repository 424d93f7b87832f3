// Package payload implements the payload template parser (C8) and payload
// generators (C9), grounded on
// original_source/attack-engine/src/parser.rs and payload.rs.
package payload

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/regaipserdar/proxxy-sub001/internal/errors"
)

const maxGeneratedPayloads = 1_000_000

// Generator produces the payload values for one named payload set.
type Generator interface {
	Generate() ([]string, error)
	Count() (int, error)
	Description() string
	Validate() error
}

// CustomGenerator serves a fixed, user-supplied list of payload values.
type CustomGenerator struct {
	Values []string
}

func (g *CustomGenerator) Validate() error {
	if len(g.Values) == 0 {
		return errors.InvalidPayloadConfig("custom payload list cannot be empty")
	}
	return nil
}

func (g *CustomGenerator) Generate() ([]string, error) {
	if len(g.Values) == 0 {
		return nil, errors.PayloadGenerationFailed("custom payload list is empty")
	}
	out := make([]string, len(g.Values))
	copy(out, g.Values)
	return out, nil
}

func (g *CustomGenerator) Count() (int, error) {
	return len(g.Values), nil
}

func (g *CustomGenerator) Description() string {
	return fmt.Sprintf("Custom payloads (%d items)", len(g.Values))
}

// NumberRangeGenerator emits a numeric sequence formatted via either a
// "{}" placeholder substitution or a printf-style %d/%x/%X/%o directive.
type NumberRangeGenerator struct {
	Start  int64
	End    int64
	Step   int64
	Format string // defaults to "{}"
}

func (g *NumberRangeGenerator) format() string {
	if g.Format == "" {
		return "{}"
	}
	return g.Format
}

func (g *NumberRangeGenerator) directionValid() bool {
	if g.Step == 0 {
		return false
	}
	if g.Step > 0 && g.Start > g.End {
		return false
	}
	if g.Step < 0 && g.Start < g.End {
		return false
	}
	return true
}

func (g *NumberRangeGenerator) Validate() error {
	if g.Step == 0 {
		return errors.InvalidPayloadConfig("step cannot be zero")
	}
	if !g.directionValid() {
		return errors.InvalidPayloadConfig("invalid range: step direction doesn't match start/end relationship")
	}
	if g.format() == "" {
		return errors.InvalidPayloadConfig("format string cannot be empty")
	}
	return nil
}

func (g *NumberRangeGenerator) formatValue(current int64) string {
	f := g.format()
	if strings.Contains(f, "{}") {
		return strings.ReplaceAll(f, "{}", fmt.Sprintf("%d", current))
	}
	switch f {
	case "%d":
		return fmt.Sprintf("%d", current)
	case "%x":
		return fmt.Sprintf("%x", current)
	case "%X":
		return fmt.Sprintf("%X", current)
	case "%o":
		return fmt.Sprintf("%o", current)
	default:
		return fmt.Sprintf("%d", current)
	}
}

func (g *NumberRangeGenerator) Generate() ([]string, error) {
	if g.Step == 0 {
		return nil, errors.PayloadGenerationFailed("step cannot be zero")
	}
	if !g.directionValid() {
		return nil, errors.PayloadGenerationFailed("invalid range: step direction doesn't match start/end relationship")
	}

	var out []string
	current := g.Start
	for (g.Step > 0 && current <= g.End) || (g.Step < 0 && current >= g.End) {
		out = append(out, g.formatValue(current))
		current += g.Step
		if len(out) > maxGeneratedPayloads {
			return nil, errors.PayloadGenerationFailed("number range too large (>1M payloads)")
		}
	}
	return out, nil
}

func (g *NumberRangeGenerator) Count() (int, error) {
	if g.Step == 0 {
		return 0, errors.PayloadGenerationFailed("step cannot be zero")
	}
	if !g.directionValid() {
		return 0, nil
	}
	count := int((g.End-g.Start)/g.Step) + 1
	if count > maxGeneratedPayloads {
		return 0, errors.PayloadGenerationFailed("number range too large (>1M payloads)")
	}
	return count, nil
}

func (g *NumberRangeGenerator) Description() string {
	return fmt.Sprintf("Number range: %d to %d (step %d)", g.Start, g.End, g.Step)
}

// WordlistGenerator reads newline-delimited payload values from a file,
// trimming whitespace and dropping blank lines.
type WordlistGenerator struct {
	FilePath string
	Encoding string // informational only; files are read as UTF-8
}

func (g *WordlistGenerator) Validate() error {
	if g.FilePath == "" {
		return errors.InvalidPayloadConfig("file path cannot be empty")
	}
	if _, err := os.Stat(g.FilePath); err != nil {
		return errors.InvalidPayloadConfig(fmt.Sprintf("wordlist file does not exist: %s", g.FilePath))
	}
	if g.Encoding != "" && strings.TrimSpace(g.Encoding) == "" {
		return errors.InvalidPayloadConfig("encoding cannot be empty")
	}
	return nil
}

func (g *WordlistGenerator) readLines() ([]string, error) {
	f, err := os.Open(g.FilePath)
	if err != nil {
		return nil, errors.PayloadGenerationFailed(fmt.Sprintf("failed to read wordlist file: %v", err))
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.PayloadGenerationFailed(fmt.Sprintf("failed to read wordlist file: %v", err))
	}
	return lines, nil
}

func (g *WordlistGenerator) Generate() ([]string, error) {
	if _, err := os.Stat(g.FilePath); err != nil {
		return nil, errors.PayloadGenerationFailed(fmt.Sprintf("wordlist file not found: %s", g.FilePath))
	}
	lines, err := g.readLines()
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, errors.PayloadGenerationFailed("wordlist file contains no valid payloads")
	}
	return lines, nil
}

func (g *WordlistGenerator) Count() (int, error) {
	lines, err := g.readLines()
	if err != nil {
		return 0, err
	}
	return len(lines), nil
}

func (g *WordlistGenerator) Description() string {
	return fmt.Sprintf("Wordlist from file: %s", g.FilePath)
}
