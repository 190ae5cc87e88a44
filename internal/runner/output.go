package runner

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	ansiEscape      = regexp.MustCompile(`\x1B(?:[@-Z\\-_]|\[[0-?]*[ -/]*[@-~])`)
	requirementLine = regexp.MustCompile(`^(.+?)(?:\[.+\])?==`)
	showVersionLine = regexp.MustCompile(`(?m)^\s*version\s*:\s*(\S+)`)
)

// StripANSI removes terminal escape sequences
func StripANSI(text string) string {
	return ansiEscape.ReplaceAllString(text, "")
}

// Truncate keeps at most limit characters of text. A limit of zero or less
// keeps everything.
func Truncate(text string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return text
	}
	count := 0
	for i := range text {
		if count == limit {
			return text[:i]
		}
		count++
	}
	return text
}

// ParseRequirement returns the project name of a requirements.txt line such
// as `pydantic[dotenv]==1.10.6 ; python_version >= "3.10"`
func ParseRequirement(line string) (string, bool) {
	match := requirementLine.FindStringSubmatch(strings.TrimSpace(line))
	if match == nil {
		return "", false
	}
	return match[1], true
}

// PluginDependencies returns the module names of store plugins found in the
// exported requirements, excluding the plugin itself
func PluginDependencies(requirements, self string, known map[string]string) []string {
	var deps []string
	for _, line := range strings.Split(strings.TrimSpace(requirements), "\n") {
		project, ok := ParseRequirement(line)
		if !ok || project == self {
			continue
		}
		if module, ok := known[project]; ok {
			deps = append(deps, module)
		}
	}
	return deps
}

// ParseShowVersion extracts the version from `poetry show <package>` output
func ParseShowVersion(output string) string {
	match := showVersionLine.FindStringSubmatch(StripANSI(output))
	if match == nil {
		return ""
	}
	return match[1]
}

// outputLog collects the lines of a test log
type outputLog struct {
	lines []string
}

func (l *outputLog) add(line string) {
	l.lines = append(l.lines, line)
}

// addIndented appends every line of block, indented
func (l *outputLog) addIndented(block string) {
	block = strings.TrimSpace(block)
	if block == "" {
		return
	}
	for _, line := range strings.Split(block, "\n") {
		l.lines = append(l.lines, "    "+strings.TrimRight(line, "\r"))
	}
}

func (l *outputLog) String() string {
	return strings.Join(l.lines, "\n")
}
