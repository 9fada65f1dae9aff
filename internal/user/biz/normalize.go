package biz

import (
	"regexp"
	"strings"
)

// canonicalDomains folds provider aliases into one canonical domain so
// that the same mailbox registered under two spellings collides
var canonicalDomains = map[string]string{
	"ya.ru":      "yandex.ru",
	"yandex.com": "yandex.ru",
	"narod.ru":   "yandex.ru",
}

// dotReplacement holds per-provider local-part dot handling: gmail and
// googlemail ignore dots entirely, yandex treats them as hyphens.
// googlemail.com is deliberately not folded into gmail.com; the two stay
// distinct domains with the same dot rule.
var dotReplacement = map[string]string{
	"gmail.com":      "",
	"googlemail.com": "",
	"yandex.ru":      "-",
}

var localPartJunk = regexp.MustCompile(`[^\w.+-]`)

// NormalizeEmail canonicalizes an email address for uniqueness checks:
// lowercase, alias domains folded, plus-tag stripped, provider-specific
// dot rules applied, and stray characters removed from the local part.
// An address without exactly one @ is returned lowercased as-is.
func NormalizeEmail(email string) string {
	email = strings.ToLower(strings.TrimSpace(email))

	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return email
	}
	local, domain := email[:at], email[at+1:]

	if canonical, ok := canonicalDomains[domain]; ok {
		domain = canonical
	}

	if plus := strings.Index(local, "+"); plus >= 0 {
		local = local[:plus]
	}

	if repl, ok := dotReplacement[domain]; ok {
		local = strings.ReplaceAll(local, ".", repl)
	}

	local = localPartJunk.ReplaceAllString(local, "")

	return local + "@" + domain
}

// NormalizeUsername lowercases and trims a username
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}
