package services

import "errors"

var (
	ErrDuplicateUsername  = errors.New("username already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrProductNotFound    = errors.New("product not found")
	ErrForbidden          = errors.New("forbidden")
	ErrCategoryNotFound   = errors.New("category not found")
	ErrDuplicateCategory  = errors.New("category already exists")
	ErrCategoryInUse      = errors.New("category is in use")
	ErrImageNotFound      = errors.New("image not found")
	ErrInvalidInput       = errors.New("invalid input")
)
