package task

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	minTitleLen       = 4
	maxTitleLen       = 40
	minDescriptionLen = 10
	maxDescriptionLen = 250
)

var (
	ErrNotFound           = errors.New("task not found")
	ErrInvalidTitle       = errors.New("title must be 4 to 40 characters")
	ErrInvalidDescription = errors.New("description must be 10 to 250 characters")
)

type Task struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"-"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Completed   bool      `json:"completed"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type CreateInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Completed   bool   `json:"completed"`
}

func (in *CreateInput) Normalize() {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
}

func (in CreateInput) Validate() error {
	if err := validateTitle(in.Title); err != nil {
		return err
	}
	return validateDescription(in.Description)
}

// PatchInput carries only the fields the client sent; nil means unchanged.
type PatchInput struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Completed   *bool   `json:"completed"`
}

func (in *PatchInput) Normalize() {
	if in.Title != nil {
		v := strings.TrimSpace(*in.Title)
		in.Title = &v
	}
	if in.Description != nil {
		v := strings.TrimSpace(*in.Description)
		in.Description = &v
	}
}

func (in PatchInput) Validate() error {
	if in.Title != nil {
		if err := validateTitle(*in.Title); err != nil {
			return err
		}
	}
	if in.Description != nil {
		if err := validateDescription(*in.Description); err != nil {
			return err
		}
	}
	return nil
}

func (in PatchInput) Empty() bool {
	return in.Title == nil && in.Description == nil && in.Completed == nil
}

func validateTitle(title string) error {
	if !utf8.ValidString(title) {
		return ErrInvalidTitle
	}
	if n := utf8.RuneCountInString(title); n < minTitleLen || n > maxTitleLen {
		return ErrInvalidTitle
	}
	return nil
}

func validateDescription(description string) error {
	if !utf8.ValidString(description) {
		return ErrInvalidDescription
	}
	if n := utf8.RuneCountInString(description); n < minDescriptionLen || n > maxDescriptionLen {
		return ErrInvalidDescription
	}
	return nil
}

// IsValidationError reports whether err came from input validation.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidTitle) || errors.Is(err, ErrInvalidDescription)
}
