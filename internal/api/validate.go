package api

import (
	"errors"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	entrans "github.com/go-playground/validator/v10/translations/en"
)

var (
	validate   *validator.Validate
	translator ut.Translator
)

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())

	translator, _ = ut.New(en.New(), en.New()).GetTranslator("en")
	if err := entrans.RegisterDefaultTranslations(validate, translator); err != nil {
		panic(err)
	}
}

// checkValid validates a request struct against its validate tags, returning
// a single human-readable error listing every failed field.
func checkValid(val any) error {
	if err := validate.Struct(val); err != nil {
		var verrors validator.ValidationErrors
		if !errors.As(err, &verrors) {
			return err
		}

		msgs := make([]string, 0, len(verrors))
		for _, verror := range verrors {
			msgs = append(msgs, verror.Translate(translator))
		}
		return errors.New(strings.Join(msgs, "; "))
	}
	return nil
}
