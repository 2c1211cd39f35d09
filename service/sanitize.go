package service

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	scriptTag = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	anyTag    = regexp.MustCompile(`<[^>]*>`)
)

// truncate cuts s to at most n runes
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func stripScripts(s string) string {
	return scriptTag.ReplaceAllString(s, "")
}

func stripTags(s string, n int) string {
	return strings.TrimSpace(truncate(anyTag.ReplaceAllString(s, ""), n))
}
