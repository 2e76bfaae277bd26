package registry

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/aretw0/formflow/pkg/domain"
)

const (
	// OtherPrefix marks a free-text answer to a choice field ("Other: ...").
	OtherPrefix = "Other: "

	// YesToken and NoToken are the only valid answers of a yesNo field.
	YesToken = "yes"
	NoToken  = "no"

	DefaultEmailMaxLength = 255
	MinPhoneDigits        = 10
)

var (
	emailPattern   = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	websitePattern = regexp.MustCompile(`^https?://[^\s/$.?#][^\s]*$`)
	phonePattern   = regexp.MustCompile(`^\+?[0-9\s().\-]{7,}$`)
)

func buildText(field domain.FieldDefinition) (Rule, error) {
	c := field.Constraints
	rules := []Rule{lengthRule(field, c.MinLength, c.MaxLength)}

	var buildErr error
	if c.Pattern != "" {
		re, err := regexp.Compile(c.Pattern)
		if err != nil {
			buildErr = fmt.Errorf("field %q: ignoring invalid pattern: %w", field.ID, err)
		} else {
			rules = append(rules, func(value any) string {
				if !re.MatchString(value.(string)) {
					return message(field, "Invalid format")
				}
				return ""
			})
		}
	}
	return chain(rules...), buildErr
}

func lengthRule(field domain.FieldDefinition, minLen, maxLen *int) Rule {
	if minLen == nil && maxLen == nil {
		return nil
	}
	return func(value any) string {
		n := utf8.RuneCountInString(value.(string))
		if minLen != nil && n < *minLen {
			return message(field, fmt.Sprintf("%s must be at least %d characters", field.DisplayName(), *minLen))
		}
		if maxLen != nil && n > *maxLen {
			return message(field, fmt.Sprintf("%s must be at most %d characters", field.DisplayName(), *maxLen))
		}
		return ""
	}
}

func buildEmail(field domain.FieldDefinition) (Rule, error) {
	maxLen := field.Constraints.MaxLength
	if maxLen == nil {
		v := DefaultEmailMaxLength
		maxLen = &v
	}
	return chain(
		lengthRule(field, nil, maxLen),
		func(value any) string {
			if !emailPattern.MatchString(strings.TrimSpace(value.(string))) {
				return message(field, fmt.Sprintf("%s must be a valid email address", field.DisplayName()))
			}
			return ""
		},
	), nil
}

func buildWebsite(field domain.FieldDefinition) (Rule, error) {
	return func(value any) string {
		raw := strings.TrimSpace(value.(string))
		invalid := message(field, fmt.Sprintf("%s must be a valid URL (starting with http:// or https://)", field.DisplayName()))
		if !websitePattern.MatchString(raw) {
			return invalid
		}
		u, err := url.Parse(raw)
		if err != nil || !u.IsAbs() || u.Host == "" {
			return invalid
		}
		return ""
	}, nil
}

func buildPhone(field domain.FieldDefinition) (Rule, error) {
	return func(value any) string {
		raw := strings.TrimSpace(value.(string))
		if !phonePattern.MatchString(raw) {
			return message(field, fmt.Sprintf("%s must be a valid phone number", field.DisplayName()))
		}
		digits := 0
		for _, r := range raw {
			if unicode.IsDigit(r) {
				digits++
			}
		}
		if digits < MinPhoneDigits {
			return message(field, fmt.Sprintf("%s must contain at least %d digits", field.DisplayName(), MinPhoneDigits))
		}
		return ""
	}, nil
}

func buildChoice(field domain.FieldDefinition) (Rule, error) {
	options := field.Constraints.Options
	if len(options) == 0 {
		return noConstraints(field)
	}
	allowed := make(map[string]struct{}, len(options))
	for _, o := range options {
		allowed[o] = struct{}{}
	}
	return func(value any) string {
		s := value.(string)
		if _, ok := allowed[s]; ok {
			return ""
		}
		if strings.HasPrefix(s, OtherPrefix) {
			if strings.TrimSpace(strings.TrimPrefix(s, OtherPrefix)) == "" {
				return message(field, fmt.Sprintf("Please specify your answer for %s", field.DisplayName()))
			}
			return ""
		}
		return message(field, fmt.Sprintf("%s must be one of the available options", field.DisplayName()))
	}, nil
}

// IsOtherAnswer reports whether a choice answer is a free-text "Other" value.
func IsOtherAnswer(answer string) bool {
	return strings.HasPrefix(answer, OtherPrefix)
}

// OtherText returns the free text of an "Other" answer.
func OtherText(answer string) string {
	return strings.TrimPrefix(answer, OtherPrefix)
}

func buildYesNo(field domain.FieldDefinition) (Rule, error) {
	return func(value any) string {
		s := value.(string)
		if s != YesToken && s != NoToken {
			return message(field, fmt.Sprintf("%s must be answered yes or no", field.DisplayName()))
		}
		return ""
	}, nil
}

func buildRating(field domain.FieldDefinition) (Rule, error) {
	lo, hi := RatingBounds(field)
	return func(value any) string {
		n, _ := AsInt(value)
		if n < lo {
			return message(field, fmt.Sprintf("Rating must be at least %d", lo))
		}
		if n > hi {
			return message(field, fmt.Sprintf("Rating must be between %d and %d and cannot exceed %d", lo, hi, hi))
		}
		return ""
	}, nil
}

func buildFile(field domain.FieldDefinition) (Rule, error) {
	accepted := field.Constraints.AcceptedFileTypes
	var maxBytes int64 = -1
	if mb := field.Constraints.MaxFileSizeMB; mb != nil {
		maxBytes = int64(*mb * 1024 * 1024)
	}
	return func(value any) string {
		files, _ := FilesOf(value)
		for _, f := range files {
			if len(accepted) > 0 && !AcceptsFile(accepted, f) {
				return message(field, fmt.Sprintf("%s: file type of %q is not accepted", field.DisplayName(), f.Name))
			}
			if maxBytes >= 0 && f.Size > maxBytes {
				return message(field, fmt.Sprintf("%s: %q exceeds the maximum size of %s MB", field.DisplayName(), f.Name, formatMB(*field.Constraints.MaxFileSizeMB)))
			}
		}
		return ""
	}, nil
}

func formatMB(mb float64) string {
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.2f", mb), "0"), ".")
}

// AcceptsFile reports whether the file's MIME type or extension matches one of
// the accepted entries. Entries may be MIME types ("application/pdf"),
// wildcards ("image/*") or extensions (".pdf" or "pdf").
func AcceptsFile(accepted []string, f domain.FileAnswer) bool {
	mime := strings.ToLower(strings.TrimSpace(f.MimeType))
	ext := strings.ToLower(path.Ext(f.Name))
	for _, raw := range accepted {
		entry := strings.ToLower(strings.TrimSpace(raw))
		switch {
		case entry == "":
			continue
		case strings.HasSuffix(entry, "/*"):
			if mime != "" && strings.HasPrefix(mime, strings.TrimSuffix(entry, "*")) {
				return true
			}
		case strings.Contains(entry, "/"):
			if mime == entry {
				return true
			}
		default:
			if !strings.HasPrefix(entry, ".") {
				entry = "." + entry
			}
			if ext == entry {
				return true
			}
		}
	}
	return false
}
