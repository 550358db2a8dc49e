package configuration

import (
	"bufio"
	"os"
	"strings"
)

// LoadEnvFromFile loads KEY=VALUE pairs from one or more files (e.g. config.env, .env)
// and returns how many variables it set. Blank lines and # comments are skipped,
// an optional "export " prefix is accepted, and existing env vars win.
func LoadEnvFromFile(paths ...string) int {
	set := 0
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			continue
		}
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			key, val, ok := parseEnvLine(scanner.Text())
			if !ok {
				continue
			}
			if _, exists := os.LookupEnv(key); exists {
				continue
			}
			if os.Setenv(key, val) == nil {
				set++
			}
		}
		_ = f.Close()
	}
	return set
}

func parseEnvLine(line string) (string, string, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return "", "", false
	}
	line = strings.TrimPrefix(line, "export ")
	idx := strings.Index(line, "=")
	if idx <= 0 {
		return "", "", false
	}
	key := strings.TrimSpace(line[:idx])
	val := strings.Trim(strings.TrimSpace(line[idx+1:]), "\"'")
	return key, val, key != ""
}
