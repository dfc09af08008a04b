package service

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/ViniMesquitaa/map-medical/internal/models"
)

var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("request already answered")
	ErrInternal   = errors.New("internal error")
)

// ConflictError - заявка уже в терминальном статусе
type ConflictError struct {
	RequestID uuid.UUID
	Current   models.RequestStatus
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("request %s already %s", e.RequestID, e.Current)
}

func (e *ConflictError) Unwrap() error {
	return ErrConflict
}
