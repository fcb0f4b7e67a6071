package pastes

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/MarcoPoloResearchLab/pastemate/internal/expiration"
	"github.com/MarcoPoloResearchLab/pastemate/internal/highlight"
	"github.com/go-playground/validator/v10"
)

const (
	messageAnonymousPrivate = "You can't create private paste as Anonymous."
	messageInvalidChoice    = "Select a valid choice. That choice is not one of the available choices."
)

// Draft is the user-supplied input for creating or editing a paste.
type Draft struct {
	Content         string            `json:"content" validate:"required"`
	Title           string            `json:"title" validate:"max=50"`
	Syntax          string            `json:"syntax" validate:"required,syntax"`
	Exposure        Exposure          `json:"exposure" validate:"required,oneof=PU UN PR"`
	Expiration      expiration.Symbol `json:"expiration_symbol"`
	Password        string            `json:"password" validate:"max=128"`
	KeepPassword    bool              `json:"keep_password"`
	BurnAfterRead   bool              `json:"burn_after_read"`
	FolderID        string            `json:"folder"`
	NewFolder       string            `json:"new_folder" validate:"max=50"`
	PostAnonymously bool              `json:"post_anonymously"`
}

// Prefill is the subset of a paste copied into a clone form.
type Prefill struct {
	Content string `json:"content"`
	Syntax  string `json:"syntax"`
	Title   string `json:"title"`
}

// ReportInput is the body of a report submission.
type ReportInput struct {
	Reason       string `json:"reason" validate:"required,max=2000"`
	ReporterName string `json:"reporter_name" validate:"required,max=100"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	instance := validator.New(validator.WithRequiredStructEnabled())
	instance.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})
	if err := instance.RegisterValidation("syntax", func(level validator.FieldLevel) bool {
		return highlight.Supported(level.Field().String())
	}); err != nil {
		panic(err)
	}
	return instance
}

func (d Draft) normalized() Draft {
	d.Title = strings.TrimSpace(d.Title)
	d.Syntax = strings.TrimSpace(d.Syntax)
	if d.Syntax == "" {
		d.Syntax = highlight.PlainText
	}
	if d.Exposure == "" {
		d.Exposure = ExposurePublic
	}
	d.FolderID = strings.TrimSpace(d.FolderID)
	d.NewFolder = strings.TrimSpace(d.NewFolder)
	return d
}

func (s *Service) validateDraft(draft Draft, forUpdate bool, viewer Viewer) *ValidationError {
	verr := structErrors(draft)
	if !expiration.Valid(draft.Expiration, forUpdate) {
		verr.addField("expiration_symbol", messageInvalidChoice)
	}
	if s.maxContentBytes > 0 && len(draft.Content) > s.maxContentBytes {
		verr.addField("content", fmt.Sprintf("Ensure this value has at most %d bytes (it has %d).", s.maxContentBytes, len(draft.Content)))
	}
	if !forUpdate && draft.Exposure == ExposurePrivate && (!viewer.Authenticated() || draft.PostAnonymously) {
		verr.addMessage(messageAnonymousPrivate)
	}
	if verr.empty() {
		return nil
	}
	return verr
}

func validateReport(input ReportInput) (ReportInput, *ValidationError) {
	input.Reason = strings.TrimSpace(input.Reason)
	input.ReporterName = strings.TrimSpace(input.ReporterName)
	verr := structErrors(input)
	if verr.empty() {
		return input, nil
	}
	return input, verr
}

func structErrors(value interface{}) *ValidationError {
	verr := &ValidationError{}
	err := validate.Struct(value)
	if err == nil {
		return verr
	}
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		verr.addMessage(err.Error())
		return verr
	}
	for _, fieldErr := range validationErrors {
		verr.addField(fieldErr.Field(), describe(fieldErr))
	}
	return verr
}

func describe(fieldErr validator.FieldError) string {
	switch fieldErr.Tag() {
	case "required":
		return "This field is required."
	case "max":
		return fmt.Sprintf("Ensure this value has at most %s characters.", fieldErr.Param())
	case "oneof":
		return messageInvalidChoice
	case "syntax":
		return fmt.Sprintf("Select a valid choice. %v is not one of the available choices.", fieldErr.Value())
	default:
		return fmt.Sprintf("Invalid value (%s).", fieldErr.Tag())
	}
}
