package loader

import (
	"fmt"
	"strings"
)

// Generated artifacts run inside the process, so their import surface is
// restricted to side-effect-free stdlib packages. No filesystem, network,
// exec, or unsafe access.
var allowedImports = map[string]bool{
	"bytes":           true,
	"encoding/base64": true,
	"encoding/csv":    true,
	"encoding/json":   true,
	"errors":          true,
	"fmt":             true,
	"math":            true,
	"math/rand":       true,
	"regexp":          true,
	"sort":            true,
	"strconv":         true,
	"strings":         true,
	"time":            true,
	"unicode":         true,
	"unicode/utf8":    true,
}

// validateImports rejects artifacts importing anything outside the
// whitelist.
func validateImports(source string) error {
	var forbidden []string

	inBlock := false
	for _, line := range strings.Split(source, "\n") {
		trimmed := strings.TrimSpace(line)

		switch {
		case strings.HasPrefix(trimmed, "import ("):
			inBlock = true
			continue
		case inBlock && strings.HasPrefix(trimmed, ")"):
			inBlock = false
			continue
		}

		var pkg string
		switch {
		case inBlock && trimmed != "":
			pkg = importPath(trimmed)
		case strings.HasPrefix(trimmed, "import "):
			pkg = importPath(strings.TrimPrefix(trimmed, "import "))
		default:
			continue
		}
		if pkg != "" && !allowedImports[pkg] {
			forbidden = append(forbidden, pkg)
		}
	}

	if len(forbidden) > 0 {
		return fmt.Errorf("forbidden imports: %v", forbidden)
	}
	return nil
}

// importPath extracts the quoted path from an import line, tolerating
// aliased imports.
func importPath(line string) string {
	start := strings.Index(line, `"`)
	if start < 0 {
		return ""
	}
	end := strings.Index(line[start+1:], `"`)
	if end < 0 {
		return ""
	}
	return line[start+1 : start+1+end]
}
