package batch

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// cyrillicLatin transliterates the Cyrillic alphabet so ids built from
// Russian filenames stay readable after sanitization. Hard and soft signs
// carry no sound and are dropped.
var cyrillicLatin = map[rune]string{
	'а': "a", 'б': "b", 'в': "v", 'г': "g", 'д': "d", 'е': "e", 'ё': "e",
	'ж': "zh", 'з': "z", 'и': "i", 'й': "y", 'к': "k", 'л': "l", 'м': "m",
	'н': "n", 'о': "o", 'п': "p", 'р': "r", 'с': "s", 'т': "t", 'у': "u",
	'ф': "f", 'х': "kh", 'ц': "ts", 'ч': "ch", 'ш': "sh", 'щ': "shch",
	'ъ': "", 'ы': "y", 'ь': "", 'э': "e", 'ю': "yu", 'я': "ya",
}

// deaccent strips combining marks so accented Latin letters survive as their
// base character instead of being discarded.
var deaccent = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// SanitizeID reduces a filename or label to a filesystem-safe custom-id
// fragment: dots become underscores, Cyrillic is transliterated, accents are
// stripped and every remaining non-alphanumeric rune is removed.
func SanitizeID(name string) string {
	name = strings.ReplaceAll(name, ".", "_")
	if out, _, err := transform.String(deaccent, name); err == nil {
		name = out
	}
	var b strings.Builder
	for _, r := range name {
		lower := unicode.ToLower(r)
		switch {
		case lower >= 'a' && lower <= 'z', lower >= '0' && lower <= '9', lower == '_', lower == '-':
			b.WriteRune(lower)
		default:
			if latin, ok := cyrillicLatin[lower]; ok {
				b.WriteString(latin)
			}
		}
	}
	return b.String()
}
