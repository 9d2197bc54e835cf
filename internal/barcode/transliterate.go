package barcode

import (
	"regexp"
	"strings"
)

// standardizedPattern is what verification apps expect in the fnt/gnt fields.
var standardizedPattern = regexp.MustCompile(`^[A-Z<]*$`)

// transliterationTable maps accented and non-Latin code points to their
// nearest ASCII transliteration. The table is the external contract: verifiers
// recompute the standardized name byte-for-byte, so entries must never change.
var transliterationTable = map[rune]string{
	'À': "A", 'Á': "A", 'Â': "A", 'Ã': "A", 'Ā': "A", 'Ă': "A", 'Ą': "A",
	'Ä': "AE", 'Å': "AA", 'Æ': "AE",
	'Ç': "C", 'Ć': "C", 'Ĉ': "C", 'Č': "C",
	'Ď': "D", 'Đ': "D", 'Ð': "D",
	'È': "E", 'É': "E", 'Ê': "E", 'Ë': "E", 'Ē': "E", 'Ĕ': "E", 'Ė': "E", 'Ę': "E", 'Ě': "E",
	'Ĝ': "G", 'Ğ': "G", 'Ġ': "G", 'Ģ': "G",
	'Ĥ': "H", 'Ħ': "H",
	'Ì': "I", 'Í': "I", 'Î': "I", 'Ï': "I", 'Ĩ': "I", 'Ī': "I", 'Ĭ': "I", 'Į': "I", 'İ': "I",
	'Ĵ': "J",
	'Ķ': "K",
	'Ĺ': "L", 'Ļ': "L", 'Ľ': "L", 'Ŀ': "L", 'Ł': "L",
	'Ñ': "N", 'Ń': "N", 'Ņ': "N", 'Ň': "N", 'Ŋ': "N",
	'Ò': "O", 'Ó': "O", 'Ô': "O", 'Õ': "O", 'Ō': "O", 'Ŏ': "O", 'Ő': "O",
	'Ö': "OE", 'Ø': "OE", 'Œ': "OE",
	'Ŕ': "R", 'Ŗ': "R", 'Ř': "R",
	'Ś': "S", 'Ŝ': "S", 'Ş': "S", 'Š': "S", 'ß': "SS",
	'Ţ': "T", 'Ť': "T", 'Ŧ': "T", 'Þ': "TH",
	'Ù': "U", 'Ú': "U", 'Û': "U", 'Ũ': "U", 'Ū': "U", 'Ŭ': "U", 'Ů': "U", 'Ű': "U", 'Ų': "U",
	'Ü': "UE",
	'Ŵ': "W",
	'Ý': "Y", 'Ŷ': "Y", 'Ÿ': "Y",
	'Ź': "Z", 'Ż': "Z", 'Ž': "Z",
}

// transliterate upper-cases the input and substitutes every mapped code point.
// Unmapped characters pass through unchanged.
func transliterate(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range strings.ToUpper(name) {
		if sub, ok := transliterationTable[r]; ok {
			b.WriteString(sub)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// standardizeName produces the machine-readable form of one name component
// (applied independently to surname and given name). Space, hyphen and
// apostrophe become the '<' filler. If the filled form conforms to the
// standardized pattern it is used; otherwise the raw transliteration is the
// fallback so a non-conforming name is still carried verbatim.
func standardizeName(name string) string {
	raw := transliterate(name)
	filled := strings.NewReplacer(" ", "<", "-", "<", "'", "<").Replace(raw)
	if standardizedPattern.MatchString(filled) {
		return filled
	}
	return raw
}
