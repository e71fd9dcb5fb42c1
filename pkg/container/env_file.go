package container

import (
	"bufio"
	"fmt"
	"sort"
	"strings"

	"github.com/joho/godotenv"
)

// ParseEnvFile parses the environment-file protocol: simple
// `key=value` lines plus the heredoc form
//
//	key<<DELIM
//	...
//	DELIM
//
// Heredoc blocks are recognised line by line; the runs of simple lines
// between them are delegated to godotenv. Repeated keys: last wins.
func ParseEnvFile(content string) (map[string]string, error) {
	env := map[string]string{}
	var plain strings.Builder
	flushPlain := func() error {
		simple, err := godotenv.Unmarshal(plain.String())
		if err != nil {
			return err
		}
		for k, v := range simple {
			env[k] = v
		}
		plain.Reset()
		return nil
	}

	scanner := bufio.NewScanner(strings.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	type heredoc struct {
		key   string
		delim string
		lines []string
	}
	var open *heredoc

	for scanner.Scan() {
		line := scanner.Text()
		if open != nil {
			if strings.TrimSpace(line) == open.delim {
				env[open.key] = strings.Join(open.lines, "\n")
				open = nil
			} else {
				open.lines = append(open.lines, line)
			}
			continue
		}
		if key, delim, ok := splitHeredocHeader(line); ok {
			if err := flushPlain(); err != nil {
				return nil, err
			}
			open = &heredoc{key: key, delim: delim}
			continue
		}
		plain.WriteString(line)
		plain.WriteString("\n")
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if open != nil {
		return nil, fmt.Errorf("unterminated heredoc for key %q, missing delimiter %q", open.key, open.delim)
	}

	if err := flushPlain(); err != nil {
		return nil, err
	}
	return env, nil
}

func splitHeredocHeader(line string) (key, delim string, ok bool) {
	idx := strings.Index(line, "<<")
	if idx <= 0 {
		return "", "", false
	}
	key = strings.TrimSpace(line[:idx])
	delim = strings.TrimSpace(line[idx+2:])
	if key == "" || delim == "" || strings.ContainsAny(key, "=") {
		return "", "", false
	}
	return key, delim, true
}

// SerializeEnvFile renders a mapping back into the simple form of the
// protocol. Values containing newlines use the heredoc form. Parsing
// the output yields the same mapping.
func SerializeEnvFile(env map[string]string) string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		v := env[k]
		if strings.Contains(v, "\n") {
			delim := "EOF"
			for strings.Contains(v, delim) {
				delim += "_"
			}
			fmt.Fprintf(&sb, "%s<<%s\n%s\n%s\n", k, delim, v, delim)
		} else {
			fmt.Fprintf(&sb, "%s=%s\n", k, quoteIfNeeded(v))
		}
	}
	return sb.String()
}

func quoteIfNeeded(v string) string {
	if strings.ContainsAny(v, " #'\"\\") {
		return fmt.Sprintf("%q", v)
	}
	return v
}
