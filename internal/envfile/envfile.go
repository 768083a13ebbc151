// Package envfile is a dependency-free .env loader, adapted from the
// teacher's env.go: it reads ./.env and ../.env and injects only the keys
// this process needs into the environment, without requiring shell exports
// and without touching secrets the process has no business reading.
package envfile

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// Load reads .env from "." and ".." and sets any of the given keys found
// there into the process environment, skipping keys already set.
func Load(keys ...string) {
	needed := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		needed[k] = struct{}{}
	}
	for _, base := range []string{".", ".."} {
		load(filepath.Join(base, ".env"), needed)
	}
}

func load(path string, needed map[string]struct{}) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	s := bufio.NewScanner(f)
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "export ") {
			line = strings.TrimSpace(line[len("export "):])
		}
		eq := strings.Index(line, "=")
		if eq <= 0 {
			continue
		}
		key := strings.TrimSpace(line[:eq])
		if _, ok := needed[key]; !ok {
			continue
		}
		val := strings.TrimSpace(line[eq+1:])
		if len(val) >= 2 && (val[0] == '"' || val[0] == '\'') {
			if end := strings.IndexByte(val[1:], val[0]); end >= 0 {
				val = val[1 : end+1]
			}
		} else if idx := strings.IndexAny(val, "#"); idx >= 0 {
			val = strings.TrimSpace(val[:idx])
		}
		if os.Getenv(key) == "" {
			_ = os.Setenv(key, val)
		}
	}
}
