package render

import (
	"net/url"
	"strings"

	"github.com/Desenvolvimento-de-Software/thecarbon-bot/internal/codeblock"
)

var languageAliases = map[string]string{
	"py":      "python",
	"python3": "python",
	"js":      "javascript",
	"node":    "javascript",
	"ts":      "typescript",
	"golang":  "go",
	"rs":      "rust",
	"rb":      "ruby",
	"c":       "text/x-csrc",
	"h":       "text/x-csrc",
	"c++":     "text/x-c++src",
	"cpp":     "text/x-c++src",
	"cxx":     "text/x-c++src",
	"cs":      "text/x-csharp",
	"c#":      "text/x-csharp",
	"csharp":  "text/x-csharp",
	"java":    "text/x-java",
	"kt":      "text/x-kotlin",
	"kotlin":  "text/x-kotlin",
	"sh":      "application/x-sh",
	"bash":    "application/x-sh",
	"shell":   "application/x-sh",
	"zsh":     "application/x-sh",
	"yml":     "yaml",
	"md":      "markdown",
}

// CarbonLanguage maps a chat language tag onto a Carbon mode name. Unknown
// tags are passed through and Carbon falls back to its own detection.
func CarbonLanguage(tag string) string {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if tag == "" {
		return codeblock.AutoLanguage
	}
	if mode, ok := languageAliases[tag]; ok {
		return mode
	}
	return tag
}

// BuildURL returns <endpoint>/?<options>&l=<language>&code=<code>, every
// value query-escaped. Spaces are sent as %20 since Carbon decodes with
// decodeURIComponent.
func BuildURL(endpoint string, opts Options, language, code string) string {
	endpoint = strings.TrimRight(strings.TrimSpace(endpoint), "/")
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	q := url.Values{}
	for k, v := range opts.params() {
		q.Set(k, v)
	}
	q.Set("l", CarbonLanguage(language))
	q.Set("code", code)
	return endpoint + "/?" + strings.ReplaceAll(q.Encode(), "+", "%20")
}

// originOf returns scheme://host of a URL, used to scope browser permissions.
func originOf(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}
