package database

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Artifact selects which schema family a migration belongs to
type Artifact string

const (
	ArtifactMain     Artifact = "main"
	ArtifactPlatform Artifact = "platform"
)

// Registry translates an (artifact, version) pair into an ordered list
// of SQL statements read from the on-disk sql/ tree:
//
//	sql/v<N>/<artifact>_up.sql            base schema
//	sql/versions/V<k>/<artifact>_up.sql   incremental steps, k = 1..N
type Registry struct {
	root string
}

// NewRegistry creates a registry rooted at the given sql directory
func NewRegistry(root string) *Registry {
	return &Registry{root: root}
}

// Load returns the ordered statements bringing an artifact to the target
// version. The base file must exist; step files that do not exist are
// skipped.
func (r *Registry) Load(artifact Artifact, targetVersion int) ([]string, error) {
	return r.load(artifact, targetVersion, "_up.sql", true)
}

// Sample returns the sample-data statements for an artifact. Missing
// files yield no statements.
func (r *Registry) Sample(artifact Artifact, targetVersion int) ([]string, error) {
	return r.load(artifact, targetVersion, "_sample_data.sql", false)
}

func (r *Registry) load(artifact Artifact, targetVersion int, suffix string, baseRequired bool) ([]string, error) {
	base := filepath.Join(r.root, fmt.Sprintf("v%d", targetVersion), string(artifact)+suffix)

	var stmts []string
	data, err := os.ReadFile(base)
	if err != nil {
		if baseRequired {
			return nil, fmt.Errorf("failed to read base schema %s: %w", base, err)
		}
	} else {
		stmts = append(stmts, SplitStatements(string(data))...)
	}

	for k := 1; k <= targetVersion; k++ {
		step := filepath.Join(r.root, "versions", fmt.Sprintf("V%d", k), string(artifact)+suffix)
		data, err := os.ReadFile(step)
		if err != nil {
			// Missing per-version steps are skipped silently.
			continue
		}
		stmts = append(stmts, SplitStatements(string(data))...)
	}

	return stmts, nil
}

// SplitStatements splits a SQL script into individual statements.
// String literals, comments and DELIMITER blocks are never split
// internally; empty and comment-only statements are dropped. Malformed
// SQL is left to the server to reject at execution time.
func SplitStatements(script string) []string {
	var (
		stmts     []string
		buf       strings.Builder
		delimiter = ";"
	)

	flush := func() {
		stmt := strings.TrimSpace(buf.String())
		buf.Reset()
		if stmt != "" && !commentOnly(stmt) {
			stmts = append(stmts, stmt)
		}
	}

	i := 0
	for i < len(script) {
		rest := script[i:]

		// DELIMITER directives switch the statement terminator for the
		// following block (stored procedures, triggers).
		if atLineStart(script, i) {
			if d, n := parseDelimiterDirective(rest); n > 0 {
				flush()
				delimiter = d
				i += n
				continue
			}
		}

		switch {
		case strings.HasPrefix(rest, "--") || (strings.HasPrefix(rest, "#") && atLineStart(script, i)):
			n := strings.IndexByte(rest, '\n')
			if n < 0 {
				n = len(rest)
			}
			buf.WriteString(rest[:n])
			i += n

		case strings.HasPrefix(rest, "/*"):
			n := strings.Index(rest[2:], "*/")
			if n < 0 {
				buf.WriteString(rest)
				i = len(script)
			} else {
				buf.WriteString(rest[:n+4])
				i += n + 4
			}

		case rest[0] == '\'' || rest[0] == '"' || rest[0] == '`':
			n := scanQuoted(rest)
			buf.WriteString(rest[:n])
			i += n

		case strings.HasPrefix(rest, delimiter):
			flush()
			i += len(delimiter)

		default:
			buf.WriteByte(rest[0])
			i++
		}
	}
	flush()

	return stmts
}

// parseDelimiterDirective recognizes a leading "DELIMITER xx" line and
// returns the new delimiter and the number of bytes consumed.
func parseDelimiterDirective(rest string) (string, int) {
	const kw = "DELIMITER"
	if len(rest) < len(kw) || !strings.EqualFold(rest[:len(kw)], kw) {
		return "", 0
	}
	lineEnd := strings.IndexByte(rest, '\n')
	line := rest
	consumed := len(rest)
	if lineEnd >= 0 {
		line = rest[:lineEnd]
		consumed = lineEnd + 1
	}
	d := strings.TrimSpace(line[len(kw):])
	if d == "" {
		return "", 0
	}
	return d, consumed
}

// scanQuoted returns the length of the quoted literal starting at s[0],
// honouring backslash escapes and doubled quotes.
func scanQuoted(s string) int {
	quote := s[0]
	i := 1
	for i < len(s) {
		switch s[i] {
		case '\\':
			if quote != '`' && i+1 < len(s) {
				i += 2
				continue
			}
			i++
		case quote:
			// Doubled quote is an escaped quote inside the literal.
			if i+1 < len(s) && s[i+1] == quote {
				i += 2
				continue
			}
			return i + 1
		default:
			i++
		}
	}
	return len(s)
}

func atLineStart(script string, i int) bool {
	for j := i - 1; j >= 0; j-- {
		switch script[j] {
		case '\n':
			return true
		case ' ', '\t', '\r':
			continue
		default:
			return false
		}
	}
	return true
}

// commentOnly reports whether a trimmed statement consists solely of
// comments.
func commentOnly(stmt string) bool {
	i := 0
	for i < len(stmt) {
		rest := stmt[i:]
		switch {
		case strings.HasPrefix(rest, "--") || strings.HasPrefix(rest, "#"):
			n := strings.IndexByte(rest, '\n')
			if n < 0 {
				return true
			}
			i += n + 1
		case strings.HasPrefix(rest, "/*"):
			n := strings.Index(rest[2:], "*/")
			if n < 0 {
				return true
			}
			i += n + 4
		case rest[0] == ' ' || rest[0] == '\t' || rest[0] == '\n' || rest[0] == '\r':
			i++
		default:
			return false
		}
	}
	return true
}
