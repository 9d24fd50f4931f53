package world

import "errors"

// Sentinel errors for the entity store.
var (
	ErrDuplicateEntity = errors.New("entity already exists")
	ErrEntityNotFound  = errors.New("entity not found")
	ErrNoInstance      = errors.New("entity has no instance")
	ErrSameInstance    = errors.New("handoff to the same instance")
	ErrKindMismatch    = errors.New("entity payload does not match kind")
)
