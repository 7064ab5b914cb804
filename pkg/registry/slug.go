package registry

import "strings"

// reservedSlugs are names that would shadow well-known routes or hosts.
var reservedSlugs = map[string]struct{}{
	"www":      {},
	"dev":      {},
	"api":      {},
	"specdock": {},
}

const minSlugLength = 3

// NormalizeSlug lowercases and validates a slug: at least three characters
// from [a-z0-9_~-], not a reserved word. The normalized form is returned.
func NormalizeSlug(slug string) (string, error) {
	s := strings.ToLower(slug)

	if len(s) < minSlugLength {
		return "", inputErrorf("slug must be at least %d characters", minSlugLength)
	}
	if _, reserved := reservedSlugs[s]; reserved {
		return "", inputErrorf("slug %q is reserved, please choose another", s)
	}
	for _, c := range s {
		if !isSlugChar(c) {
			return "", inputErrorf("slug %q contains invalid characters", slug)
		}
	}
	return s, nil
}

func isSlugChar(c rune) bool {
	return c >= 'a' && c <= 'z' ||
		c >= '0' && c <= '9' ||
		c == '-' || c == '_' || c == '~'
}
