package services

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"messaging-service/internal/models"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	if err := v.RegisterValidation("objectid", func(fl validator.FieldLevel) bool {
		return models.ValidID(fl.Field().String())
	}); err != nil {
		panic(err)
	}
	return v
}

type sendInput struct {
	ReceiverID string `json:"receiver_id" validate:"required,objectid"`
	Content    string `json:"content" validate:"required"`
}

type shareInput struct {
	PostID       string   `json:"post_id" validate:"required,objectid"`
	RecipientIDs []string `json:"recipient_ids" validate:"min=1,dive,objectid"`
}

type historyInput struct {
	OtherUserID string `json:"other_user_id" validate:"required,objectid"`
}

// validateInput reports the first rule a request breaks, wrapped in
// ErrInvalidInput.
func validateInput(in any) error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	fe := fieldErrs[0]
	switch fe.Tag() {
	case "required":
		return fmt.Errorf("%w: %s is required", ErrInvalidInput, fe.Field())
	case "min":
		return fmt.Errorf("%w: %s must not be empty", ErrInvalidInput, fe.Field())
	case "objectid":
		return fmt.Errorf("%w: invalid id %q in %s", ErrInvalidInput, fe.Value(), fe.Field())
	}
	return fmt.Errorf("%w: invalid %s", ErrInvalidInput, fe.Field())
}
