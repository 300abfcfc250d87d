// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads optional local settings from a directory of
// plain-text files, one value per file: the filename is the key and the
// trimmed contents are the value.
//
// Recognized keys: contact-email.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// DefaultDir is where the CLI looks for secret files.
const DefaultDir = ".secrets"

// ContactEmail is the key whose value is appended to the User-Agent so
// site operators can reach whoever runs the crawler.
const ContactEmail = "contact-email"

// Load reads all files in dir and returns a map of filename to trimmed
// contents. A missing directory is not an error. Unreadable files are
// logged and skipped.
func Load(dir string, logger *zap.Logger) (map[string]string, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	values := make(map[string]string)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			logger.Warn("could not read secret", zap.String("name", name), zap.Error(err))
			continue
		}
		if v := strings.TrimSpace(string(data)); v != "" {
			values[name] = v
		}
	}
	return values, nil
}

// UserAgent appends the contact email, if any, to base in the
// "(+mailto:...)" form crawlers conventionally use.
func UserAgent(base string, values map[string]string) string {
	email := values[ContactEmail]
	if email == "" || !strings.Contains(email, "@") {
		return base
	}
	return fmt.Sprintf("%s (+mailto:%s)", base, email)
}
