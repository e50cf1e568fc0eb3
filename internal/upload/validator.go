package upload

import (
	"lexdesk/internal/config"
	"lexdesk/internal/model"
)

// Validator decides whether a candidate file may enter the queue.
// It is pure and safe for concurrent use.
type Validator struct {
	allowed  map[string]struct{}
	maxBytes int64
}

// NewValidator builds a validator from the upload policy. Empty settings fall
// back to PDF/DOC/DOCX and 10 MiB.
func NewValidator(cfg config.UploadConfig) *Validator {
	types := cfg.AllowedTypes
	if len(types) == 0 {
		types = []string{config.MIMEPDF, config.MIMEDOC, config.MIMEDOCX}
	}
	maxBytes := cfg.MaxSizeBytes
	if maxBytes <= 0 {
		maxBytes = config.DefaultMaxUploadBytes
	}

	allowed := make(map[string]struct{}, len(types))
	for _, t := range types {
		allowed[t] = struct{}{}
	}
	return &Validator{allowed: allowed, maxBytes: maxBytes}
}

// MaxBytes is the size ceiling, inclusive.
func (v *Validator) MaxBytes() int64 { return v.maxBytes }

// Validate checks the declared type first, then the size.
func (v *Validator) Validate(f model.FileDescriptor) model.ValidationOutcome {
	if _, ok := v.allowed[f.DeclaredType]; !ok {
		return model.Reject(model.ReasonUnsupportedType)
	}
	if f.SizeBytes < 0 || f.SizeBytes > v.maxBytes {
		return model.Reject(model.ReasonTooLarge)
	}
	return model.Accept()
}
