package download

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

const unknownTitle = "Unknown"

type (
	// Request is a request to download the media found at URL. Only URL is
	// mandatory; missing fields are populated from the user's settings.
	Request struct {
		URL       string    `validate:"required"`
		Kind      MediaKind `validate:"omitempty,oneof=video audio"`
		Quality   string    `validate:"omitempty,max=16,alphanum"`
		Container string    `validate:"omitempty,max=8,alphanum"`
		Title     string    `validate:"max=512"`
	}

	// Defaults are the user-configurable values used to complete a
	// partially specified Request, along with the root of the download tree.
	Defaults struct {
		DownloadRoot string
		VideoQuality string
		VideoFormat  string
		AudioFormat  string
	}

	DefaultsProvider interface {
		Defaults() Defaults
	}

	// ValidationError is returned for requests which are missing mandatory
	// fields or have malformed values. No job is created for such requests.
	ValidationError struct {
		Problems []string
	}
)

func (err *ValidationError) Error() string {
	return fmt.Sprintf("invalid request: %s", strings.Join(err.Problems, "; "))
}

func newValidator() *validator.Validate {
	return validator.New()
}

// validateRequest checks the request against its validation tags. A *ValidationError
// is returned describing every problem found.
func validateRequest(validate *validator.Validate, request *Request) error {
	request.URL = strings.TrimSpace(request.URL)
	err := validate.Struct(request)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return &ValidationError{Problems: []string{err.Error()}}
	}

	problems := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		problems = append(problems, describeFieldError(fe))
	}

	return &ValidationError{Problems: problems}
}

func describeFieldError(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "alphanum":
		return fmt.Sprintf("%s must be alphanumeric", field)
	default:
		return fmt.Sprintf("%s failed '%s' validation", field, fe.Tag())
	}
}

// applyDefaults populates any omitted fields of the request.
func applyDefaults(request *Request, defaults Defaults) {
	if request.Kind == "" {
		request.Kind = Video
	}

	if request.Title == "" {
		request.Title = unknownTitle
	}

	if request.Kind == Audio {
		if request.Container == "" {
			request.Container = defaults.AudioFormat
		}
		return
	}

	if request.Quality == "" {
		request.Quality = defaults.VideoQuality
	}
	if request.Quality == "" {
		request.Quality = BestQuality
	}
	if request.Container == "" {
		request.Container = defaults.VideoFormat
	}
}
