package models

import "github.com/google/uuid"

// assignID fills a zero primary key before insert so rows created through
// GORM carry their identifier back to the caller on every driver.
func assignID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
