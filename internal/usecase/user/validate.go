package user

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	domain "secure-user-api/internal/domain/user"
	apperrors "secure-user-api/pkg/errors"
	"secure-user-api/pkg/security"
)

// userFields carries the cleaned values that are checked against the field rules.
// Length limits count characters, not bytes.
type userFields struct {
	Email    string  `json:"email" validate:"required,email,max=320"`
	FullName string  `json:"full_name" validate:"required,min=2,max=100"`
	Bio      *string `json:"bio" validate:"omitempty,max=500"`
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// NormalizeEmail trims the address and lowercases its domain. The local part
// is kept as typed, so uniqueness is case-sensitive there.
func NormalizeEmail(email string) string {
	email = strings.TrimSpace(email)
	at := strings.LastIndexByte(email, '@')
	if at < 0 {
		return email
	}
	return email[:at+1] + strings.ToLower(email[at+1:])
}

func cleanBio(bio *string) *string {
	if bio == nil {
		return nil
	}
	cleaned := security.Sanitize(*bio)
	return &cleaned
}

// cleanCreate sanitizes a create request and checks every field.
func (uc *Usecase) cleanCreate(in CreateUserRequest) (userFields, error) {
	f := userFields{
		Email:    NormalizeEmail(in.Email),
		FullName: security.Sanitize(in.FullName),
		Bio:      cleanBio(in.Bio),
	}
	if err := uc.validate.Struct(f); err != nil {
		return userFields{}, formatValidationError(err)
	}
	return f, nil
}

// cleanPatch sanitizes the present fields of p and checks only those.
// Email and FullName may be omitted but never set to null.
func (uc *Usecase) cleanPatch(p domain.Patch) (domain.Patch, error) {
	var (
		f       userFields
		present []string
	)

	if p.Email.Set {
		if p.Email.Null {
			return domain.Patch{}, apperrors.NewValidationError("email", "email cannot be null")
		}
		f.Email = NormalizeEmail(p.Email.Value)
		p.Email.Value = f.Email
		present = append(present, "Email")
	}
	if p.FullName.Set {
		if p.FullName.Null {
			return domain.Patch{}, apperrors.NewValidationError("full_name", "full_name cannot be null")
		}
		f.FullName = security.Sanitize(p.FullName.Value)
		p.FullName.Value = f.FullName
		present = append(present, "FullName")
	}
	if p.Bio.Set && !p.Bio.Null {
		p.Bio.Value = security.Sanitize(p.Bio.Value)
		f.Bio = &p.Bio.Value
		present = append(present, "Bio")
	}

	if len(present) == 0 {
		return p, nil
	}
	if err := uc.validate.StructPartial(f, present...); err != nil {
		return domain.Patch{}, formatValidationError(err)
	}
	return p, nil
}

// formatValidationError converts the first validator failure into a ValidationError
// carrying the field name and a human-readable message.
func formatValidationError(err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) || len(validationErrors) == 0 {
		return err
	}

	e := validationErrors[0]
	field := e.Field()

	var msg string
	switch e.Tag() {
	case "required":
		msg = fmt.Sprintf("%s is required", field)
	case "email":
		msg = fmt.Sprintf("%s must be a valid email", field)
	case "min":
		msg = fmt.Sprintf("%s must be at least %s characters", field, e.Param())
	case "max":
		msg = fmt.Sprintf("%s must be at most %s characters", field, e.Param())
	default:
		msg = fmt.Sprintf("%s is invalid", field)
	}

	return apperrors.NewValidationError(field, msg)
}
