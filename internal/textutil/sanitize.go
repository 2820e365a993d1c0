package textutil

import "strings"

// fileNameReplacer replaces filesystem-unsafe characters with safe alternatives.
var fileNameReplacer = strings.NewReplacer(
	"/", "-",
	"\\", "-",
	":", "-",
	"*", "-",
	"?", "",
	"\"", "",
	"<", "",
	">", "",
	"|", "",
)

// SanitizeFileName replaces filesystem-unsafe characters in a filename.
// Slashes, backslashes, colons, and asterisks become dashes; other unsafe
// characters are removed. Leading dots are dropped so the result is never a
// hidden entry or a parent reference. Returns "unknown" when nothing is left.
func SanitizeFileName(name string) string {
	name = strings.TrimSpace(fileNameReplacer.Replace(strings.TrimSpace(name)))
	name = strings.TrimSpace(strings.TrimLeft(name, "."))
	if name == "" {
		return "unknown"
	}
	return name
}
