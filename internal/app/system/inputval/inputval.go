// Package inputval validates decoded request payloads.
//
// Rules are go-playground/validator struct tags. Messages use the field's
// `label` tag (falling back to the JSON name) so they can be returned to
// API callers unchanged.
package inputval

import (
	"fmt"
	"net/url"
	"reflect"
	"strings"

	"github.com/dalemusser/producthub/internal/domain/models"
	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(fieldLabel)

	_ = validate.RegisterValidation("objectid", func(fl validator.FieldLevel) bool {
		return IsValidObjectID(fl.Field().String())
	})
	_ = validate.RegisterValidation("httpurl", func(fl validator.FieldLevel) bool {
		return IsValidHTTPURL(fl.Field().String())
	})
	_ = validate.RegisterValidation("role", func(fl validator.FieldLevel) bool {
		_, err := models.ParseRole(fl.Field().String())
		return err == nil
	})
	_ = validate.RegisterValidation("productstatus", func(fl validator.FieldLevel) bool {
		return models.IsValidProductStatus(models.ProductStatus(fl.Field().String()))
	})
	_ = validate.RegisterValidation("taskstatus", func(fl validator.FieldLevel) bool {
		return models.IsValidTaskStatus(models.TaskStatus(fl.Field().String()))
	})
	_ = validate.RegisterValidation("taskpriority", func(fl validator.FieldLevel) bool {
		return models.IsValidTaskPriority(models.TaskPriority(fl.Field().String()))
	})
	_ = validate.RegisterValidation("feedbacktype", func(fl validator.FieldLevel) bool {
		return models.IsValidFeedbackType(models.FeedbackType(fl.Field().String()))
	})
	_ = validate.RegisterValidation("feedbackstatus", func(fl validator.FieldLevel) bool {
		return models.IsValidFeedbackStatus(models.FeedbackStatus(fl.Field().String()))
	})
}

// FieldError is one failed rule.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Result collects the failures of one Validate call.
type Result struct {
	Errors []FieldError `json:"errors,omitempty"`
}

// HasErrors reports whether any rule failed.
func (r *Result) HasErrors() bool { return len(r.Errors) > 0 }

// First returns the first message, or "".
func (r *Result) First() string {
	if len(r.Errors) == 0 {
		return ""
	}
	return r.Errors[0].Message
}

// All joins every message with "; ".
func (r *Result) All() string {
	msgs := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		msgs = append(msgs, e.Message)
	}
	return strings.Join(msgs, "; ")
}

// Validate checks v (a struct or pointer to struct) against its tags.
func Validate(v any) *Result {
	res := &Result{}
	err := validate.Struct(v)
	if err == nil {
		return res
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		res.Errors = append(res.Errors, FieldError{Message: err.Error()})
		return res
	}
	for _, fe := range verrs {
		res.Errors = append(res.Errors, FieldError{Field: fe.Field(), Message: message(fe)})
	}
	return res
}

func message(fe validator.FieldError) string {
	label := fe.Field()
	switch fe.Tag() {
	case "required":
		return label + " is required."
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at most %s characters.", label, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s.", label, fe.Param())
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters.", label, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s.", label, fe.Param())
	case "email":
		return "A valid email address is required."
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s.", label, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "objectid":
		return label + " must be a valid id."
	case "httpurl":
		return label + " must be an http(s) URL."
	default:
		return label + " is invalid."
	}
}

// fieldLabel names a field by its label tag, then its JSON name.
func fieldLabel(f reflect.StructField) string {
	if l := f.Tag.Get("label"); l != "" {
		return l
	}
	name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	if name != "" {
		return name
	}
	return f.Name
}

// IsValidObjectID reports whether s (trimmed) is a 24-digit hex ObjectID.
func IsValidObjectID(s string) bool {
	_, err := primitive.ObjectIDFromHex(strings.TrimSpace(s))
	return err == nil
}

// IsValidHTTPURL reports whether s is an absolute http or https URL.
func IsValidHTTPURL(s string) bool {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
