// Package skills resolves a target role to the ranked list of canonical
// skills the occupational standards provider requires for it.
package skills

import "strings"

var separatorReplacer = strings.NewReplacer("_", " ", "-", " ", "/", " ")

// stopWords are excluded from token-overlap scoring when matching occupation titles.
var stopWords = map[string]struct{}{
	"and": {}, "or": {}, "the": {}, "a": {}, "an": {}, "of": {},
}

// Aliases maps a canonical skill token to the spellings and tool names that
// count as evidence of it in free text (readmes, manifests, languages).
var Aliases = map[string][]string{
	"rest api":          {"rest api", "restful api", "fastapi", "express", "flask"},
	"python":            {"python", "py", "fastapi", "django"},
	"javascript":        {"javascript", "node", "nodejs", "express"},
	"typescript":        {"typescript", "ts-node", "tsconfig", "next.js"},
	"sql":               {"sql", "postgresql", "mysql", "sqlite"},
	"cloud fundamental": {"cloud fundamentals", "aws", "azure", "gcp", "terraform"},
	"cybersecurity":     {"cybersecurity", "threat hunting", "siem", "splunk", "security"},
}

// Normalize lowercases text, converts common separators to spaces and
// collapses whitespace.
func Normalize(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(separatorReplacer.Replace(strings.TrimSpace(text)))), " ")
}

// CanonicalToken lowercases a single token and singularizes it when it is
// longer than four characters and ends in "s".
func CanonicalToken(token string) string {
	value := strings.ToLower(strings.TrimSpace(token))
	if len(value) > 4 && strings.HasSuffix(value, "s") {
		value = value[:len(value)-1]
	}
	return value
}

// Canonical normalizes a full skill name and singularizes each of its tokens,
// producing the cross-provider matching form.
func Canonical(name string) string {
	tokens := strings.Fields(Normalize(name))
	for i, token := range tokens {
		tokens[i] = CanonicalToken(token)
	}
	return strings.Join(tokens, " ")
}

// canonicalTokenSet returns the canonical tokens of text, minus stop words.
func canonicalTokenSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, token := range strings.Fields(Normalize(text)) {
		if _, skip := stopWords[token]; skip {
			continue
		}
		if canonical := CanonicalToken(token); canonical != "" {
			set[canonical] = struct{}{}
		}
	}
	return set
}

// AliasPool returns the skill's canonical token plus all known aliases.
func AliasPool(skill string) []string {
	token := Canonical(skill)
	pool := []string{token}
	for _, alias := range Aliases[token] {
		if alias != token {
			pool = append(pool, alias)
		}
	}
	return pool
}
