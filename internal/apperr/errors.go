package apperr

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrValidation         = errors.New("validation failed")
	ErrTooManyImages      = errors.New("too many images")
	ErrInvalidContentType = errors.New("invalid content type")
	ErrSizeLimit          = errors.New("size limit exceeded")
	ErrDecode             = errors.New("image decode failed")
)
