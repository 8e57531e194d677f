package mew

import (
	"github.com/go-playground/validator/v10"

	"github.com/meowerlab/meower/core"
)

const (
	MaxNameLength    = 50
	MaxContentLength = 140
)

var validate = validator.New()

// candidate holds trimmed fields; max counts unicode code points
type candidate struct {
	Name    string `validate:"required,max=50"`
	Content string `validate:"required,max=140"`
}

// Validate checks trimmed name and content.
// The returned error never tells which field failed.
func Validate(name, content string) error {
	if err := validate.Struct(candidate{Name: name, Content: content}); err != nil {
		return core.NewErrorInvalidMew()
	}
	return nil
}
