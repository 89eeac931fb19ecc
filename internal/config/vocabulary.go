package config

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"gagyebu/internal/core"
)

const (
	ExpenseCategoriesFile = "expense_categories.txt"
	IncomeCategoriesFile  = "income_categories.txt"
)

// Vocabulary returns the category lists. A seed file in CategoriesDir
// replaces the built-in list for its type; blank lines and lines starting
// with # are skipped.
func (c *Config) Vocabulary() core.Vocabulary {
	v := core.DefaultVocabulary()
	if c.CategoriesDir == "" {
		return v
	}
	if cats := readLines(filepath.Join(c.CategoriesDir, ExpenseCategoriesFile)); len(cats) > 0 {
		v[core.Expense] = cats
	}
	if cats := readLines(filepath.Join(c.CategoriesDir, IncomeCategoriesFile)); len(cats) > 0 {
		v[core.Income] = cats
	}
	return v
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return dedupe(out)
}

// dedupe drops repeats, keeping first-seen order.
func dedupe(in []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
