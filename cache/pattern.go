package cache

import (
	"regexp"
	"strings"

	"github.com/cockroachdb/errors"
)

// compilePattern translates a glob pattern ("*" matches any run of
// characters, "?" matches a single character) into an anchored regexp.
// Everything else is matched literally.
func compilePattern(pattern string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("^")
	for _, r := range pattern {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, errors.Wrapf(err, "cache: invalid pattern %q", pattern)
	}
	return re, nil
}
