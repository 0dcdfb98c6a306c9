package tts

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/language"
)

// MaxTextBytes bounds the text accepted by any provider. Individual
// providers may enforce smaller limits.
const MaxTextBytes = 100 * 1024

var optionKeyPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_.-]*$`)

// NormalizeLanguage validates a language code and returns its canonical
// BCP 47 form.
func NormalizeLanguage(code string) (string, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return "", InvalidRequest("language is required", nil)
	}

	tag, err := language.Parse(code)
	if err != nil {
		return "", InvalidRequest(fmt.Sprintf("invalid language code %q", code), err)
	}
	if tag == language.Und {
		return "", InvalidRequest(fmt.Sprintf("undetermined language code %q", code), nil)
	}
	return tag.String(), nil
}

// BaseLanguage returns the primary language subtag ("en" for "en-US").
func BaseLanguage(code string) string {
	tag, err := language.Parse(code)
	if err != nil {
		if i := strings.IndexAny(code, "-_"); i > 0 {
			return strings.ToLower(code[:i])
		}
		return strings.ToLower(code)
	}
	base, _ := tag.Base()
	return base.String()
}

func validateText(text string) error {
	if strings.TrimSpace(text) == "" {
		return InvalidRequest("text cannot be empty", nil)
	}
	if len(text) > MaxTextBytes {
		return InvalidRequest(fmt.Sprintf("text too long: %d bytes (max %d)", len(text), MaxTextBytes), nil).
			WithContext("length", len(text))
	}
	if !utf8.ValidString(text) {
		return InvalidRequest("text is not valid UTF-8", nil)
	}
	return nil
}

func validateVoice(voice string) error {
	if hasControl(voice) {
		return InvalidRequest(fmt.Sprintf("voice %q contains control characters", voice), nil)
	}
	return nil
}

func normalizeOptions(options map[string]string) (map[string]string, error) {
	out := make(map[string]string, len(options))
	for k, v := range options {
		key := strings.ToLower(strings.TrimSpace(k))
		if !optionKeyPattern.MatchString(key) {
			return nil, InvalidRequest(fmt.Sprintf("invalid option name %q", k), nil)
		}
		if _, dup := out[key]; dup {
			return nil, InvalidRequest(fmt.Sprintf("duplicate option %q", key), nil)
		}
		val := strings.TrimSpace(v)
		if hasControl(val) {
			return nil, InvalidRequest(fmt.Sprintf("option %q contains control characters", key), nil)
		}
		out[key] = val
	}
	return out, nil
}

func hasControl(s string) bool {
	return strings.IndexFunc(s, unicode.IsControl) >= 0
}
