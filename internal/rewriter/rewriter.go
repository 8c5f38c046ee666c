package rewriter

import (
	"strings"

	"github.com/aleister1102/webmirror/internal/errorwrapper"
	"github.com/aleister1102/webmirror/internal/urlhandler"
)

// RewriteRule is one ordered domain substitution. Original is normalized
// for matching (lowercased, www. stripped); Replacement is substituted
// literally as given.
type RewriteRule struct {
	Original    string
	Replacement string
}

// ParseRules builds the ordered rule list from the comma-separated request
// fields. Both fields must be present together and split into the same
// number of entries.
func ParseRules(originalCSV, replacementCSV string) ([]RewriteRule, error) {
	originals := splitDomains(originalCSV)
	replacements := splitDomains(replacementCSV)

	if len(originals) == 0 && len(replacements) == 0 {
		return nil, nil
	}
	if len(originals) == 0 {
		return nil, errorwrapper.NewValidationError("originalDomain", originalCSV, "original domains are required when using domain replacement")
	}
	if len(replacements) == 0 {
		return nil, errorwrapper.NewValidationError("replacementDomain", replacementCSV, "replacement domains are required when using domain replacement")
	}
	if len(originals) != len(replacements) {
		return nil, errorwrapper.NewValidationError("replacementDomain", replacementCSV, "number of original domains must match number of replacement domains")
	}

	rules := make([]RewriteRule, 0, len(originals))
	for i := range originals {
		rules = append(rules, RewriteRule{
			Original:    urlhandler.NormalizeDomain(originals[i]),
			Replacement: urlhandler.NormalizeDomain(replacements[i]),
		})
	}
	return rules, nil
}

func splitDomains(csv string) []string {
	var out []string
	for _, part := range strings.Split(csv, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// Rewriter applies ordered literal domain substitutions across HTML, CSS
// and JS text. Substitution is text replacement, not URL parsing, so
// domains inside strings, JSON payloads and inline scripts are rewritten
// too. Later rules may re-match text produced by earlier rules; that is
// accepted behavior.
type Rewriter struct {
	rules []RewriteRule
}

// NewRewriter creates a rewriter over an ordered rule list
func NewRewriter(rules []RewriteRule) *Rewriter {
	return &Rewriter{rules: rules}
}

// HasRules reports whether any substitutions are configured
func (rw *Rewriter) HasRules() bool {
	return len(rw.rules) > 0
}

// Apply runs every rule, in order, over the text. Each rule substitutes
// the www-prefixed form, the bare form, and the escaped-quote and
// percent-encoded-quote variants that appear inside script and JSON
// content.
func (rw *Rewriter) Apply(text string) string {
	if text == "" {
		return text
	}

	for _, rule := range rw.rules {
		orig, repl := rule.Original, rule.Replacement

		// www form first so the bare replacement does not leave a
		// dangling "www." prefix behind.
		text = strings.ReplaceAll(text, "www."+orig, repl)
		text = strings.ReplaceAll(text, orig, repl)

		text = strings.ReplaceAll(text, `\"`+orig+`\"`, `\"`+repl+`\"`)
		text = strings.ReplaceAll(text, `\'`+orig+`\'`, `\'`+repl+`\'`)
		text = strings.ReplaceAll(text, "%22"+orig+"%22", "%22"+repl+"%22")
	}

	return text
}
