package core

import (
	"fmt"
	"os"
	"strings"
)

// Template is a script template with $KEY and ${KEY} placeholders. A doubled
// dollar ($$) renders as a single literal dollar. Substituted values are
// emitted verbatim and never rescanned.
type Template struct {
	Name string
	text string
}

// LoadTemplate reads a template file.
func LoadTemplate(path string) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &IOError{Op: "read template", Path: path, Err: err}
	}
	return ParseTemplate(path, string(data)), nil
}

// ParseTemplate wraps text as a template identified by name in errors.
func ParseTemplate(name, text string) *Template {
	return &Template{Name: name, text: text}
}

// Render substitutes every placeholder with lookup(key). Lookups that fail
// and malformed placeholders are reported as ConfigurationError.
func (t *Template) Render(lookup func(key string) (string, bool)) (string, error) {
	var b strings.Builder
	b.Grow(len(t.text))
	err := t.scan(
		func(lit string) { b.WriteString(lit) },
		func(key string) error {
			v, ok := lookup(key)
			if !ok {
				return &ConfigurationError{Source: t.Name, Key: key, Reason: "unresolved template placeholder"}
			}
			b.WriteString(v)
			return nil
		},
	)
	if err != nil {
		return "", err
	}
	return b.String(), nil
}

// Placeholders lists the placeholder keys in order of appearance,
// duplicates included.
func (t *Template) Placeholders() ([]string, error) {
	var keys []string
	err := t.scan(func(string) {}, func(key string) error {
		keys = append(keys, key)
		return nil
	})
	return keys, err
}

func (t *Template) scan(literal func(string), placeholder func(string) error) error {
	s := t.text
	for {
		i := strings.IndexByte(s, '$')
		if i < 0 {
			literal(s)
			return nil
		}
		literal(s[:i])
		rest := s[i+1:]

		switch {
		case strings.HasPrefix(rest, "$"):
			literal("$")
			s = rest[1:]
		case strings.HasPrefix(rest, "{"):
			end := strings.IndexByte(rest, '}')
			if end < 0 || !isIdent(rest[1:end]) {
				return t.invalid(len(t.text) - len(s) + i)
			}
			if err := placeholder(rest[1:end]); err != nil {
				return err
			}
			s = rest[end+1:]
		default:
			n := identLen(rest)
			if n == 0 {
				return t.invalid(len(t.text) - len(s) + i)
			}
			if err := placeholder(rest[:n]); err != nil {
				return err
			}
			s = rest[n:]
		}
	}
}

func (t *Template) invalid(offset int) error {
	line := strings.Count(t.text[:offset], "\n") + 1
	return &ConfigurationError{Source: t.Name, Reason: fmt.Sprintf("invalid placeholder on line %d", line)}
}

func isIdent(s string) bool {
	return s != "" && identLen(s) == len(s)
}

// identLen returns the length of the identifier at the start of s.
func identLen(s string) int {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '_', 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z':
		case '0' <= c && c <= '9' && i > 0:
		default:
			return i
		}
	}
	return len(s)
}
