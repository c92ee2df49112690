// Package textutil turns catalog titles and keywords into file names.
package textutil

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/mozillazg/go-unidecode"
	"golang.org/x/text/unicode/norm"
)

// maxNameBytes keeps names under common 255-byte filesystem limits once an
// index suffix and extension are appended.
const maxNameBytes = 200

// fileNameReplacer removes filesystem-unsafe characters and turns blanks into underscores.
var fileNameReplacer = strings.NewReplacer(
	"\\", "",
	"/", "",
	"*", "",
	"?", "",
	":", "",
	"\"", "",
	"<", "",
	">", "",
	"|", "",
	" ", "_",
	"\t", "_",
	"\n", "_",
	"\r", "",
)

// SanitizeFileName makes name safe to use as a single path element. The
// result is NFC-normalized and truncated on a rune boundary. Returns "" when
// nothing usable remains.
func SanitizeFileName(name string) string {
	name = strings.TrimSpace(norm.NFC.String(name))
	if name == "" {
		return ""
	}
	name = strings.Trim(stripControl(fileNameReplacer.Replace(name)), "._")
	if name == "" {
		return ""
	}
	return truncate(name, maxNameBytes)
}

// KeywordName is the path element used for a keyword: its media directory
// and the prefix of fallback file names. It never romanizes, so both always
// agree, and it returns "unknown" when nothing usable remains.
func KeywordName(keyword string) string {
	if name := SanitizeFileName(keyword); name != "" {
		return name
	}
	return "unknown"
}

// ASCIIFileName romanizes name before sanitizing it.
func ASCIIFileName(name string) string {
	ascii := strings.Join(strings.Fields(unidecode.Unidecode(name)), " ")
	return SanitizeFileName(ascii)
}

// FileNamer returns SanitizeFileName or ASCIIFileName.
func FileNamer(ascii bool) func(string) string {
	if ascii {
		return ASCIIFileName
	}
	return SanitizeFileName
}

// stripControl drops control characters the replacer leaves behind, such as NUL.
func stripControl(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
