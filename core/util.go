package core

import (
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	slugStripRegex = regexp.MustCompile(`[^\w\s-]`)
	slugDashRegex  = regexp.MustCompile(`[-\s_]+`)
)

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// Slugify converts `s` to a URL slug: lowercase ASCII words joined by hyphens.
func Slugify(s string) string {
	s = slugStripRegex.ReplaceAllString(CleanString(s, true /* lower */), "")
	s = slugDashRegex.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// Getwd finds the project root (the directory holding go.mod).
// go-test changes the working directory to the test package being run.
func Getwd() string {
	wd, err := os.Getwd()
	if err != nil {
		log.Fatal(err)
	}
	currDir := wd
	for {
		if fi, err := os.Stat(filepath.Join(currDir, "go.mod")); err == nil && !fi.IsDir() {
			return currDir
		}
		newDir := filepath.Dir(currDir)
		if newDir == string(os.PathSeparator) || newDir == currDir {
			// not running from the source tree (e.g. a deployed binary)
			return wd
		}
		currDir = newDir
	}
}
