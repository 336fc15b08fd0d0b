package apperrors

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrRunNotFinished    = errors.New("run has not finished")
	ErrRunNotCancellable = errors.New("run is already finished")
	ErrUnknownReader     = errors.New("unknown reader type")
	ErrUnknownFormat     = errors.New("unknown export format")
)
