package notification

import (
	"time"

	"github.com/google/uuid"
)

type EntityType string

const (
	EntityBudget      EntityType = "BUDGET"
	EntityTransaction EntityType = "TRANSACTION"
)

// Notification is an in-app message shown to one user.
type Notification struct {
	Id                uuid.UUID
	UserId            int
	Title             string
	Message           string
	RelatedEntityId   *int
	RelatedEntityType EntityType
	Read              bool
	CreatedAt         time.Time
}
