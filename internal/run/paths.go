package run

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

// ValidateRequest checks the paths of a run request before anything is
// written: the working directory must be an existing, clean, absolute
// directory and the output must not climb out of it.
func ValidateRequest(req Request) error {
	if err := ValidateWorkDir(req.WorkDir); err != nil {
		return err
	}
	return ValidateOutput(req.Output)
}

func ValidateWorkDir(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return fmt.Errorf("%w: work_dir is required", ErrInvalidRequest)
	}
	if !filepath.IsAbs(dir) {
		return fmt.Errorf("%w: work_dir must be absolute", ErrInvalidRequest)
	}
	if hasTraversal(dir) {
		return fmt.Errorf("%w: work_dir cannot contain path traversal", ErrInvalidRequest)
	}

	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: work_dir does not exist", ErrInvalidRequest)
		}
		return fmt.Errorf("%w: work_dir: %v", ErrInvalidRequest, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: work_dir is not a directory", ErrInvalidRequest)
	}
	return nil
}

// ValidateOutput accepts an empty output (the default is used), an absolute
// path, or a relative path that stays inside the working directory.
func ValidateOutput(output string) error {
	if output == "" {
		return nil
	}
	if strings.IndexFunc(output, unicode.IsControl) >= 0 {
		return fmt.Errorf("%w: output contains control characters", ErrInvalidRequest)
	}
	if hasTraversal(output) {
		return fmt.Errorf("%w: output cannot contain path traversal", ErrInvalidRequest)
	}
	if strings.HasSuffix(filepath.ToSlash(output), "/") {
		return fmt.Errorf("%w: output must name a file", ErrInvalidRequest)
	}
	return nil
}

func hasTraversal(p string) bool {
	for _, part := range strings.Split(filepath.ToSlash(p), "/") {
		if part == ".." {
			return true
		}
	}
	return false
}

// SanitizeName strips control characters and replaces anything outside a
// conservative set with '_' so the name is safe to store and display.
func SanitizeName(s string, maxLen int) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsControl(r) {
			continue
		}
		if isAllowedNameRune(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}

	cleaned := strings.TrimSpace(b.String())
	if maxLen > 0 {
		if runes := []rune(cleaned); len(runes) > maxLen {
			cleaned = string(runes[:maxLen])
		}
	}
	return cleaned
}

func isAllowedNameRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsDigit(r) {
		return true
	}
	switch r {
	case ' ', '-', '_', '.', ',', '(', ')', '/', ':':
		return true
	}
	return false
}
