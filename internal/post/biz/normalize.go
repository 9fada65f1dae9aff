package biz

import (
	"regexp"
	"strings"
)

var nonWordRegex = regexp.MustCompile(`\W`)

// cyrillicToLatin transliterates Russian letters for normalized names,
// so "Привет" and "Privet" collide instead of silently coexisting
var cyrillicToLatin = map[rune]string{
	'а': "a", 'б': "b", 'в': "v", 'г': "g", 'д': "d", 'е': "e", 'ё': "e",
	'ж': "zh", 'з': "z", 'и': "i", 'й': "j", 'к': "k", 'л': "l", 'м': "m",
	'н': "n", 'о': "o", 'п': "p", 'р': "r", 'с': "s", 'т': "t", 'у': "u",
	'ф': "f", 'х': "h", 'ц': "c", 'ч': "ch", 'ш': "sh", 'щ': "shch",
	'ъ': "", 'ы': "y", 'ь': "", 'э': "e", 'ю': "ju", 'я': "ja",
}

// NormalizeName produces the canonical comparison key for a post name:
// lowercase, transliterated, with every non-word character stripped
func NormalizeName(name string) string {
	lower := strings.ToLower(name)

	var b strings.Builder
	b.Grow(len(lower))
	for _, r := range lower {
		if latin, ok := cyrillicToLatin[r]; ok {
			b.WriteString(latin)
			continue
		}
		b.WriteRune(r)
	}

	return nonWordRegex.ReplaceAllString(b.String(), "")
}
