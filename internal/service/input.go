package service

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"berrystand/internal/admission"
	"berrystand/internal/domain"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrInvalidState = errors.New("invalid state")
)

// OrderInput данные формы заказа от покупателя
type OrderInput struct {
	PickupDate     time.Time         `json:"pickup_date"`
	PickupSlot     domain.PickupSlot `json:"pickup_slot" validate:"pickupslot"`
	Quantity       int               `json:"quantity"`
	RequesterName  string            `json:"requester_name" validate:"required,max=128"`
	RequesterEmail string            `json:"requester_email" validate:"required,email,max=128"`
	RequesterPhone string            `json:"requester_phone" validate:"omitempty,max=32"`
	Comments       string            `json:"comments" validate:"max=2000"`
}

func (in *OrderInput) normalize() {
	if !in.PickupDate.IsZero() {
		in.PickupDate = domain.DateOf(in.PickupDate)
	}
	in.RequesterName = strings.TrimSpace(in.RequesterName)
	in.RequesterEmail = strings.TrimSpace(in.RequesterEmail)
	in.RequesterPhone = strings.TrimSpace(in.RequesterPhone)
	in.Comments = strings.TrimSpace(in.Comments)
}

// ValidationError ошибки по полям и ошибки заказа целиком (например, превышение лимита)
type ValidationError struct {
	FieldErrors map[string][]string `json:"field_errors,omitempty"`
	OrderErrors []string            `json:"order_errors,omitempty"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.FieldErrors)+len(e.OrderErrors))
	fields := make([]string, 0, len(e.FieldErrors))
	for f := range e.FieldErrors {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	for _, f := range fields {
		parts = append(parts, f+": "+strings.Join(e.FieldErrors[f], "; "))
	}
	parts = append(parts, e.OrderErrors...)
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

// NewFieldError ошибка одного поля, например неразборчивая дата
func NewFieldError(field, msg string) *ValidationError {
	v := &ValidationError{}
	v.AddField(field, msg)
	return v
}

func (e *ValidationError) AddField(field, msg string) {
	if e.FieldErrors == nil {
		e.FieldErrors = make(map[string][]string)
	}
	e.FieldErrors[field] = append(e.FieldErrors[field], msg)
}

func (e *ValidationError) empty() bool {
	return len(e.FieldErrors) == 0 && len(e.OrderErrors) == 0
}

func (e *ValidationError) addDecision(d admission.Decision) {
	for field, errs := range d.FieldErrors {
		for _, err := range errs {
			e.AddField(field, sentence(err.Error()))
		}
	}
	for _, err := range d.OrderErrors {
		e.OrderErrors = append(e.OrderErrors, sentence(err.Error()))
	}
}

// sentence: заглавная буква и точка в конце
func sentence(s string) string {
	if s == "" {
		return s
	}
	s = strings.ToUpper(s[:1]) + s[1:]
	if !strings.HasSuffix(s, ".") {
		s += "."
	}
	return s
}

func newInputValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterValidation("pickupslot", func(fl validator.FieldLevel) bool {
		return domain.PickupSlot(fl.Field().Int()).Valid()
	})
	return v
}

// validateRequester проверяет поля покупателя; дату и вес проверяет admission
func validateRequester(v *validator.Validate, in OrderInput) *ValidationError {
	out := &ValidationError{}
	err := v.Struct(in)
	if err == nil {
		return out
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		out.OrderErrors = append(out.OrderErrors, err.Error())
		return out
	}
	for _, fe := range verrs {
		out.AddField(fe.Field(), fieldMessage(fe))
	}
	return out
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "email":
		return "Enter a valid email address."
	case "max":
		return fmt.Sprintf("Ensure this value has at most %s characters.", fe.Param())
	case "pickupslot":
		return "Select a valid pickup time."
	}
	return fmt.Sprintf("Failed on the %q rule.", fe.Tag())
}
