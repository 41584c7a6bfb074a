package core

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// SecretKeys are read from secrets.env and the environment, never from YAML.
var SecretKeys = []string{"AWS_ACCESS_KEY_ID", "AWS_SECRET_ACCESS_KEY", "AWS_SESSION_TOKEN"}

// LoadSecretsEnv reads a KEY=VALUE file. Lines starting with # are ignored,
// as are surrounding quotes on values. A missing file yields an empty map.
func LoadSecretsEnv(path string) (map[string]string, error) {
	out := map[string]string{}
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return out, nil
	}
	if err != nil {
		return out, fmt.Errorf("open secrets: %w", err)
	}
	defer f.Close()
	s := bufio.NewScanner(f)
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")
		if i := strings.IndexByte(line, '='); i >= 0 {
			k := strings.TrimSpace(line[:i])
			v := strings.Trim(strings.TrimSpace(line[i+1:]), `"'`)
			out[k] = v
		}
	}
	if err := s.Err(); err != nil {
		return out, fmt.Errorf("read secrets: %w", err)
	}
	return out, nil
}

// mergeSecrets overlays the environment on the file values for SecretKeys.
func mergeSecrets(file map[string]string) map[string]string {
	out := map[string]string{}
	for _, k := range SecretKeys {
		if v, ok := file[k]; ok && v != "" {
			out[k] = v
		}
		if v := os.Getenv(k); v != "" {
			out[k] = v
		}
	}
	return out
}
