package validation

import (
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

var (
	clockTag   = "clock"
	clockText  = "{0} must be a time of day (HH:MM or HH:MM:SS)"
	clockRegex = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d(:[0-5]\d)?$`)

	requiredTag  = "required"
	requiredText = "{0} is required"
)

// Messages overrides the translated text for a failed rule. Keys are
// "field.tag" (most specific) or "field", using JSON field names.
type Messages map[string]string

// Errors maps a JSON field name to a human readable message.
type Errors map[string]string

func (e Errors) Error() string {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e[k])
	}
	return strings.Join(parts, "; ")
}

// Validator wraps go-playground/validator with English translations and
// JSON field naming.
type Validator struct {
	validate   *validator.Validate
	translator ut.Translator
}

// New instantiates a validator with the default and custom rules registered.
func New() *Validator {
	english := en.New()
	translator, _ := ut.New(english, english).GetTranslator("en")

	validate := validator.New()
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	// Use JSON tag names for errors instead of Go struct names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	v := &Validator{validate: validate, translator: translator}
	_ = validate.RegisterValidation(clockTag, func(fl validator.FieldLevel) bool {
		return clockRegex.MatchString(fl.Field().String())
	})
	v.RegisterMessage(clockTag, clockText)
	v.RegisterMessage(requiredTag, requiredText)
	return v
}

// RegisterMessage registers (or overrides) the translation for a validation tag.
func (v *Validator) RegisterMessage(tag, text string) {
	_ = v.validate.RegisterTranslation(
		tag, v.translator,
		func(t ut.Translator) error { return t.Add(tag, text, true) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fe.Field(), fe.Param())
			return s
		},
	)
}

// RegisterStructValidation registers a cross-field rule for the given types.
func (v *Validator) RegisterStructValidation(fn validator.StructLevelFunc, types ...interface{}) {
	v.validate.RegisterStructValidation(fn, types...)
}

// Check validates s and returns Errors when any rule fails. Only the first
// failure per field is kept.
func (v *Validator) Check(s interface{}, msgs Messages) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	out := make(Errors, len(verrs))
	for _, fe := range verrs {
		field := fe.Field()
		if _, seen := out[field]; seen {
			continue
		}
		switch {
		case msgs[field+"."+fe.Tag()] != "":
			out[field] = msgs[field+"."+fe.Tag()]
		case msgs[field] != "":
			out[field] = msgs[field]
		default:
			out[field] = fe.Translate(v.translator)
		}
	}
	return out
}
