package form

import (
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

// EmailPattern matches the address shapes accepted across hub forms.
var EmailPattern = regexp.MustCompile(`(?i)^[A-Z0-9._%+-]+@[A-Z0-9.-]+\.[A-Z]{2,}$`)

// DateLayout is the ISO date format submitted by date inputs.
const DateLayout = "2006-01-02"

var (
	validateOnce sync.Once
	validate     *validator.Validate
	phonePattern = regexp.MustCompile(`^\+?[0-9][0-9 ()-]{5,18}[0-9]$`)
)

// Validator returns the shared validator instance with hub-specific tags registered.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		_ = validate.RegisterValidation("hubphone", func(fl validator.FieldLevel) bool {
			return phonePattern.MatchString(strings.TrimSpace(fl.Field().String()))
		})
	})
	return validate
}

// Rule checks one field value. Check returns the error message, or "" when the value passes.
type Rule interface {
	Check(value string, values map[string]string) string
}

// Dependent is implemented by rules that read other fields. The owning field is
// revalidated whenever one of those fields changes.
type Dependent interface {
	DependsOn() []string
}

// RuleFunc adapts a function to Rule.
type RuleFunc func(value string, values map[string]string) string

// Check implements Rule.
func (f RuleFunc) Check(value string, values map[string]string) string {
	return f(value, values)
}

// Required rejects blank values.
func Required(message string) Rule {
	return RuleFunc(func(value string, _ map[string]string) string {
		if strings.TrimSpace(value) == "" {
			return message
		}
		return ""
	})
}

// Pattern rejects non-empty values that do not match re.
func Pattern(re *regexp.Regexp, message string) Rule {
	return RuleFunc(func(value string, _ map[string]string) string {
		value = strings.TrimSpace(value)
		if value == "" || re.MatchString(value) {
			return ""
		}
		return message
	})
}

// MinLength rejects non-empty values shorter than n characters.
func MinLength(n int, message string) Rule {
	return RuleFunc(func(value string, _ map[string]string) string {
		if value == "" || utf8.RuneCountInString(value) >= n {
			return ""
		}
		return message
	})
}

// MaxLength rejects values longer than n characters.
func MaxLength(n int, message string) Rule {
	return RuleFunc(func(value string, _ map[string]string) string {
		if utf8.RuneCountInString(value) <= n {
			return ""
		}
		return message
	})
}

// OneOf rejects non-empty values outside options.
func OneOf(options []string, message string) Rule {
	allowed := make(map[string]struct{}, len(options))
	for _, opt := range options {
		allowed[opt] = struct{}{}
	}
	return RuleFunc(func(value string, _ map[string]string) string {
		if value == "" {
			return ""
		}
		if _, ok := allowed[value]; ok {
			return ""
		}
		return message
	})
}

// SubsetOf rejects a comma-joined list containing anything outside options.
func SubsetOf(options []string, message string) Rule {
	allowed := make(map[string]struct{}, len(options))
	for _, opt := range options {
		allowed[opt] = struct{}{}
	}
	return RuleFunc(func(value string, _ map[string]string) string {
		for _, item := range SplitList(value) {
			if _, ok := allowed[item]; !ok {
				return message
			}
		}
		return ""
	})
}

// NotBeforeToday rejects ISO dates earlier than the current day in now's location.
func NotBeforeToday(now func() time.Time, message string) Rule {
	if now == nil {
		now = time.Now
	}
	return RuleFunc(func(value string, _ map[string]string) string {
		value = strings.TrimSpace(value)
		if value == "" {
			return ""
		}
		current := now()
		day, err := time.ParseInLocation(DateLayout, value, current.Location())
		if err != nil {
			return message
		}
		y, m, d := current.Date()
		today := time.Date(y, m, d, 0, 0, 0, 0, current.Location())
		if day.Before(today) {
			return message
		}
		return ""
	})
}

// Tag validates non-empty values with a go-playground/validator tag such as "email" or "datetime=2006-01-02".
func Tag(tag, message string) Rule {
	return RuleFunc(func(value string, _ map[string]string) string {
		value = strings.TrimSpace(value)
		if value == "" {
			return ""
		}
		if err := Validator().Var(value, tag); err != nil {
			return message
		}
		return ""
	})
}

// EqualsField requires the value to equal another field's value.
func EqualsField(other, message string) Rule {
	return equalsRule{other: other, message: message}
}

type equalsRule struct {
	other   string
	message string
}

func (r equalsRule) Check(value string, values map[string]string) string {
	if value == "" {
		return ""
	}
	if value != values[r.other] {
		return r.message
	}
	return ""
}

func (r equalsRule) DependsOn() []string {
	return []string{r.other}
}

// SplitList splits a comma-joined multi-value field, dropping blanks and duplicates.
func SplitList(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	seen := make(map[string]struct{})
	var out []string
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if _, ok := seen[part]; ok {
			continue
		}
		seen[part] = struct{}{}
		out = append(out, part)
	}
	return out
}

// JoinList is the inverse of SplitList.
func JoinList(items []string) string {
	return strings.Join(SplitList(strings.Join(items, ",")), ",")
}
