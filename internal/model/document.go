package model

import "errors"

// Errors shared by every resource served through the generic factory.
var (
	ErrDocumentNotFound = errors.New("no document found with that id")
	ErrUpdateForbidden  = errors.New("not allowed to update document")
	ErrDeleteForbidden  = errors.New("not allowed to delete document")
	ErrRoleForbidden    = errors.New("role not permitted")
)
