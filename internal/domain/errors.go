package domain

import (
	"errors"
	"fmt"
)

// Error kinds raised by the processing pipeline. Callers classify failures
// with errors.Is against these values.
var (
	ErrValidation          = errors.New("validation failed")
	ErrTemplateLoad        = errors.New("template load failed")
	ErrExtraction          = errors.New("content extraction failed")
	ErrRendererUnavailable = errors.New("PDF renderer is unavailable in this environment")
	ErrRender              = errors.New("PDF rendering failed")
	ErrStorage             = errors.New("artifact upload failed")
	ErrPersistence         = errors.New("record store operation failed")
)

// TemplateLoadError reports a template that could not be read or compiled.
type TemplateLoadError struct {
	Name string
	Err  error
}

func (e *TemplateLoadError) Error() string {
	return fmt.Sprintf("could not load template %q: %v", e.Name, e.Err)
}

func (e *TemplateLoadError) Unwrap() error {
	return e.Err
}

func (e *TemplateLoadError) Is(target error) bool {
	return target == ErrTemplateLoad
}
