package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/decidepage/core/internal/modules/extract"
	"github.com/decidepage/core/internal/modules/intelligence"
)

// Kind is the machine-readable classification of a terminal failure.
type Kind string

const (
	KindExtraction Kind = "extraction"
	KindRender     Kind = "render"
	KindConflict   Kind = "conflict"
	KindTimeout    Kind = "timeout"
	KindNotFound   Kind = "not_found"
	KindCancelled  Kind = "cancelled"
	KindInternal   Kind = "internal"
)

// Failure is a terminal pipeline error. Every Failed transition surfaces
// exactly one of these, either as an error stream event or as a synchronous
// error for non-streaming calls.
type Failure struct {
	Kind Kind
	Err  error
}

func (f *Failure) Error() string {
	if f.Err == nil {
		return string(f.Kind)
	}
	return fmt.Sprintf("%s: %v", f.Kind, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// AsFailure extracts a Failure from err, classifying plain errors as internal.
func AsFailure(err error) *Failure {
	var f *Failure
	if errors.As(err, &f) {
		return f
	}
	return &Failure{Kind: KindInternal, Err: err}
}

func classifyExtractErr(err error) *Failure {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &Failure{Kind: KindTimeout, Err: err}
	case errors.Is(err, context.Canceled):
		return &Failure{Kind: KindCancelled, Err: err}
	case errors.Is(err, extract.ErrEmptyInput):
		return &Failure{Kind: KindExtraction, Err: err}
	default:
		return &Failure{Kind: KindExtraction, Err: err}
	}
}

func classifyRenderErr(err error) *Failure {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &Failure{Kind: KindTimeout, Err: err}
	case errors.Is(err, context.Canceled):
		return &Failure{Kind: KindCancelled, Err: err}
	default:
		return &Failure{Kind: KindRender, Err: err}
	}
}

func classifyStoreErr(err error) *Failure {
	switch {
	case errors.Is(err, intelligence.ErrConflict):
		return &Failure{Kind: KindConflict, Err: err}
	case errors.Is(err, intelligence.ErrNotFound):
		return &Failure{Kind: KindNotFound, Err: err}
	default:
		return &Failure{Kind: KindInternal, Err: err}
	}
}

func errIllegalTransition(from, to Stage) error {
	return fmt.Errorf("illegal stage transition %q -> %q", from, to)
}
