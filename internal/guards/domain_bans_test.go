package guards

import (
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"testing"
)

// walkGoSources calls fn for every non-test .go file under dir.
func walkGoSources(t *testing.T, dir string, fn func(rel, content string)) {
	t.Helper()
	repoRoot := findRepoRoot(t)
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(repoRoot, path)
		fn(filepath.ToSlash(rel), string(data))
		return nil
	})
	if err != nil {
		t.Fatalf("walk failed: %v", err)
	}
}

func lineOf(content string, offset int) string {
	return strconv.Itoa(1 + strings.Count(content[:offset], "\n"))
}

// TestSchedulingUsesInjectedClock enforces that "today" is only ever read
// through the engine's clock option, so past-date checks stay testable.
func TestSchedulingUsesInjectedClock(t *testing.T) {
	pattern := regexp.MustCompile(`time\.Now\(\)`)
	dir := filepath.Join(findRepoRoot(t), "internal", "components", "scheduling")

	var violations []string
	walkGoSources(t, dir, func(rel, content string) {
		for _, loc := range pattern.FindAllStringIndex(content, -1) {
			violations = append(violations, rel+":"+lineOf(content, loc[0])+": direct time.Now() call")
		}
	})
	if len(violations) > 0 {
		t.Fatalf("Found direct clock reads in scheduling (use WithClock):\n%s",
			strings.Join(violations, "\n"))
	}
}

// TestNoWireTagsInScheduling keeps domain types free of JSON tags. Response
// views are declared next to their handlers under components/api.
func TestNoWireTagsInScheduling(t *testing.T) {
	pattern := regexp.MustCompile("`json:\"")
	dir := filepath.Join(findRepoRoot(t), "internal", "components", "scheduling")

	var violations []string
	walkGoSources(t, dir, func(rel, content string) {
		for _, loc := range pattern.FindAllStringIndex(content, -1) {
			violations = append(violations, rel+":"+lineOf(content, loc[0])+": json tag on domain type")
		}
	})
	if len(violations) > 0 {
		t.Fatalf("Found wire tags in the scheduling package:\n%s",
			strings.Join(violations, "\n"))
	}
}

// TestNoStdlibLogPackage enforces log/slog over the standard log package.
func TestNoStdlibLogPackage(t *testing.T) {
	pattern := regexp.MustCompile(`(?m)^\s*(\w+\s+)?"log"$`)
	root := findRepoRoot(t)

	var violations []string
	for _, dir := range []string{"cmd", "internal"} {
		walkGoSources(t, filepath.Join(root, dir), func(rel, content string) {
			for _, loc := range pattern.FindAllStringIndex(content, -1) {
				violations = append(violations, rel+":"+lineOf(content, loc[0])+": imports \"log\"")
			}
		})
	}
	if len(violations) > 0 {
		t.Fatalf("Found imports of the standard log package (use log/slog):\n%s",
			strings.Join(violations, "\n"))
	}
}
