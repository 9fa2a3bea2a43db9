package services

import "errors"

var (
	ErrNotFound        = errors.New("record not found")
	ErrForbidden       = errors.New("not allowed to access this record")
	ErrInvalidInput    = errors.New("invalid input")
	ErrNothingToUndo   = errors.New("nothing to undo")
	ErrUndoExpired     = errors.New("undo window has passed")
	ErrEmailTaken      = errors.New("email is already registered")
	ErrBadCredentials  = errors.New("invalid email or password")
	ErrInvalidCode     = errors.New("invalid or expired reset code")
	ErrUnsupportedFile = errors.New("unsupported file type")
)
