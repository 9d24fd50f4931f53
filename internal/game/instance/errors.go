package instance

import "errors"

// Sentinel errors for the instance system.
var (
	ErrEmptyTemplateKey  = errors.New("empty template key")
	ErrEmptyBounds       = errors.New("template bounds are empty")
	ErrSpawnOutOfBounds  = errors.New("spawn point outside template bounds")
	ErrObstacleAtSpawn   = errors.New("spawn point inside an obstacle")
	ErrDuplicateTemplate = errors.New("duplicate instance template")
	ErrTemplateNotFound  = errors.New("instance template not found")
	ErrInstanceNotFound  = errors.New("instance not found")
	ErrInconsistent      = errors.New("instance is inconsistent")
	ErrNotOccupant       = errors.New("entity is not an occupant")
)
