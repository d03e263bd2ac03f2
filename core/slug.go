package core

import (
	"strings"
	"sync"

	slug "github.com/goliatone/go-slug"
	"golang.org/x/text/unicode/norm"
)

const maxSlugLength = 80

var slugCharMap = sync.OnceValue(func() map[string]string {
	mapping, err := slug.GetCharMap()
	if err != nil {
		return map[string]string{}
	}
	return mapping
})

// Slugify transliterates value with the go-slug character map, turns every
// run of other characters into a single dash and lowercases the result.
func Slugify(value string) string {
	mapping := slugCharMap()

	var b strings.Builder
	for _, r := range norm.NFC.String(value) {
		if replacement, ok := mapping[string(r)]; ok {
			b.WriteString(spaceOutInvalid(replacement))
			continue
		}
		b.WriteString(spaceOutInvalid(string(r)))
	}

	out, err := slug.Normalize(b.String())
	if err != nil {
		return ""
	}
	if len(out) > maxSlugLength {
		out = strings.TrimRight(out[:maxSlugLength], "-")
	}
	return out
}

func spaceOutInvalid(value string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return ' '
		}
	}, value)
}
