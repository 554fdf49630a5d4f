package api

import (
	"fmt"
	"regexp"

	apperr "github.com/aethra/hera/internal/errors"
	"github.com/go-playground/validator/v10"
)

// Smart codes follow HERA.<INDUSTRY>.<MODULE>...<KIND>.v<N>, uppercase
// segments with a trailing version.
var smartCodePattern = regexp.MustCompile(`^HERA\.[A-Z0-9_]+(\.[A-Z0-9_]+)+\.v[0-9]+$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Never fails: the pattern is the whole rule.
	_ = v.RegisterValidation("smartcode", func(fl validator.FieldLevel) bool {
		return smartCodePattern.MatchString(fl.Field().String())
	})
	return v
}

// checkSmartCode rejects malformed smart codes before they reach storage.
// Empty codes pass; required-field aggregation happens in the builders.
func checkSmartCode(code string) error {
	if code == "" {
		return nil
	}
	if err := validate.Var(code, "smartcode"); err != nil {
		return apperr.NewBadRequestError(fmt.Sprintf("malformed smart code %q", code))
	}
	return nil
}
