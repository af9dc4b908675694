// Package logs serializes per-execution records to a dated, exit-code
// bucketed path layout: a header, a redacted environment snapshot, the
// captured body, and a footer.
package logs

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
)

const rootDir = ".p"

// defaultSecretKeywords are substring-matched against env keys (case
// insensitive) regardless of any manifest-declared secret_patterns.
var defaultSecretKeywords = []string{"KEY", "TOKEN", "PASS", "SECRET"}

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[A-Za-z]`)

// Record is everything the log writer needs to serialize one execution.
type Record struct {
	TaskName   string
	Command    string
	Env        map[string]string
	Secrets    []string // extra regex patterns from identity.secret_patterns
	Body       string
	ExitCode   int
	StartTime  time.Time
	Duration   time.Duration
	StripANSI  bool
}

// Path computes the log file's destination under dir/.p/logs:
// .p/logs/<YYYY-MM-DD>/<exit_code>/<HHMMSS>_<task>_<hash6>.log.
func Path(dir string, rec Record) string {
	day := rec.StartTime.Format("2006-01-02")
	hhmmss := rec.StartTime.Format("150405")
	sanitized := sanitizeTaskName(rec.TaskName)
	hash := ContentHash(rec.TaskName, rec.StartTime)
	filename := fmt.Sprintf("%s_%s_%s.log", hhmmss, sanitized, hash[:6])
	return filepath.Join(dir, rootDir, "logs", day, fmt.Sprintf("%d", rec.ExitCode), filename)
}

// ContentHash is the hex SHA-256 of the task name and timestamp, whose
// first six characters disambiguate same-second log filenames.
func ContentHash(taskName string, ts time.Time) string {
	h := sha256.New()
	h.Write([]byte(taskName))
	h.Write([]byte(ts.Format(time.RFC3339Nano)))
	return hex.EncodeToString(h.Sum(nil))
}

func sanitizeTaskName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}

// Write renders rec and persists it under dir, creating parent directories
// as needed. It returns the path the log was written to.
func Write(dir string, rec Record) (string, error) {
	path := Path(dir, rec)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create log directory: %w", err)
	}

	content := Render(rec)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("failed to write log %s: %w", path, err)
	}
	return path, nil
}

// Render produces the full log file content.
func Render(rec Record) string {
	var b strings.Builder

	fmt.Fprintln(&b, "=== PAVIDI EXECUTION LOG ===")
	fmt.Fprintf(&b, "Task: %s\n", rec.TaskName)
	fmt.Fprintf(&b, "Command: %s\n", rec.Command)
	fmt.Fprintf(&b, "Timestamp: %s\n", rec.StartTime.Format(time.RFC3339))
	fmt.Fprintln(&b)

	fmt.Fprintln(&b, "=== ENVIRONMENT SNAPSHOT ===")
	for _, key := range sortedKeys(rec.Env) {
		value := rec.Env[key]
		if isSecret(key, rec.Secrets) {
			value = "[REDACTED]"
		}
		fmt.Fprintf(&b, "%s = %s\n", key, value)
	}
	fmt.Fprintln(&b)

	body := rec.Body
	if rec.StripANSI {
		body = ansiPattern.ReplaceAllString(body, "")
	}
	b.WriteString(body)
	if !strings.HasSuffix(body, "\n") && body != "" {
		b.WriteString("\n")
	}

	fmt.Fprintln(&b, "============================")
	fmt.Fprintf(&b, "Exit Code: %d\n", rec.ExitCode)
	fmt.Fprintf(&b, "Duration: %dms\n", rec.Duration.Milliseconds())
	fmt.Fprintf(&b, "End Time: %s\n", rec.StartTime.Add(rec.Duration).Format(time.RFC3339))
	fmt.Fprintln(&b, "============================")

	return b.String()
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// isSecret reports whether key should be redacted: a case-insensitive
// substring match against the default keyword set, or a match against any
// of the manifest's secret_patterns regexes layered atop the keyword
// filter.
func isSecret(key string, patterns []string) bool {
	upper := strings.ToUpper(key)
	for _, kw := range defaultSecretKeywords {
		if strings.Contains(upper, kw) {
			return true
		}
	}
	for _, pattern := range patterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			continue
		}
		if re.MatchString(key) {
			return true
		}
	}
	return false
}
