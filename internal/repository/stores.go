package repository

import (
	"github.com/nailerHeum/AjouNICE/internal/models"
	"gorm.io/gorm"
)

// Stores bundles one Store per entity served by the gateway.
type Stores struct {
	Users       Store[models.User]
	Posts       Store[models.Post]
	Comments    Store[models.Comment]
	Categories  Store[models.Category]
	Colleges    Store[models.College]
	Departments Store[models.Department]
}

// NewStores creates gorm-backed stores sharing one connection pool.
func NewStores(db *gorm.DB) *Stores {
	return &Stores{
		Users:       NewStore[models.User](db, Users),
		Posts:       NewStore[models.Post](db, Posts),
		Comments:    NewStore[models.Comment](db, Comments),
		Categories:  NewStore[models.Category](db, Categories),
		Colleges:    NewStore[models.College](db, Colleges),
		Departments: NewStore[models.Department](db, Departments),
	}
}
