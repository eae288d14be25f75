package extract

import (
	"fmt"
	"os"
	"path/filepath"
)

var readmeNames = []string{
	"README.md", "README.MD", "readme.md", "Readme.md",
	"README.rst", "README.txt", "README",
}

// readReadme returns the first conventional README found at the repository
// root, truncated to maxChars with a marker.
func readReadme(root string, maxChars int) string {
	for _, name := range readmeNames {
		content, err := os.ReadFile(filepath.Join(root, name))
		if err != nil {
			continue
		}
		if len(content) > maxChars {
			return fmt.Sprintf("%s\n... [truncated: showing first %d of %d characters]\n",
				string(content[:maxChars]), maxChars, len(content))
		}
		return string(content)
	}
	return ""
}
