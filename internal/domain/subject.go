package domain

import (
	"time"

	"github.com/google/uuid"
)

// User is an individual investor
type User struct {
	ID        uuid.UUID
	Name      string
	Email     string
	FamilyID  *uuid.UUID // NULL if the user does not belong to a family
	CreatedAt time.Time
}

// Family groups users whose holdings are valued together
type Family struct {
	ID   uuid.UUID
	Name string
}

// UserIDs extracts the IDs of the given users
func UserIDs(users []*User) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	return ids
}
