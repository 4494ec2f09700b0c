package script

import (
	"regexp"
	"strings"

	errx "github.com/Chative-voice-agent/server/internal/core/error"
)

var placeholderPattern = regexp.MustCompile(`\[([A-Za-z][A-Za-z0-9 _-]*)\]`)

// ResolvePlaceholders substitutes every [Name] token of template with bindings[Name].
// It never mutates its inputs. A placeholder without a binding is an error.
func ResolvePlaceholders(template string, bindings map[string]string) (string, error) {
	var missing []string
	out := placeholderPattern.ReplaceAllStringFunc(template, func(token string) string {
		name := token[1 : len(token)-1]
		if v, ok := bindings[name]; ok {
			return v
		}
		missing = append(missing, name)
		return token
	})
	if len(missing) > 0 {
		return "", errx.InvalidScript("unresolved placeholders: %s", strings.Join(missing, ", "))
	}
	return out, nil
}
