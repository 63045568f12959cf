package languages

import "strings"

// aliases maps common fence info strings to a canonical language name.
var aliases = map[string]string{
	"golang":     "go",
	"py":         "python",
	"python3":    "python",
	"rb":         "ruby",
	"ts":         "typescript",
	"tsx":        "typescript",
	"js":         "javascript",
	"jsx":        "javascript",
	"sh":         "shell",
	"bash":       "shell",
	"zsh":        "shell",
	"console":    "shell",
	"yml":        "yaml",
	"md":         "markdown",
	"dockerfile": "docker",
	"postgres":   "sql",
	"psql":       "sql",
}

// Normalize canonicalizes a fence language. Attributes after the first word
// (```go title="main.go") are dropped.
func Normalize(info string) string {
	fields := strings.Fields(strings.ToLower(info))
	if len(fields) == 0 {
		return ""
	}
	name := strings.Trim(fields[0], "{}.")
	if canonical, ok := aliases[name]; ok {
		return canonical
	}
	return name
}

// ContextTag renders a language as a shard context tag.
func ContextTag(language string) string {
	return "lang:" + language
}
