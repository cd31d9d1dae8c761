// internal/domain/models/user.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User represents any authenticated principal: individuals who file reports,
// organizations (NGOs) that resolve them, and the administrator.
//
// Status meaning depends on role:
//   - individual: approved | banned (banned doubles as the deactivated marker
//     left behind by account deletion with retained reports)
//   - organization: pending_approval | approved | rejected
//   - admin: approved
type User struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	FullName   string             `bson:"full_name" json:"full_name"`
	FullNameCI string             `bson:"full_name_ci" json:"-"` // lowercase, diacritics-stripped
	Email      string             `bson:"email" json:"email"`
	Password   string             `bson:"password,omitempty" json:"-"` // bcrypt hash, owned by the auth edge
	Role       string             `bson:"role" json:"role"`
	Status     string             `bson:"status" json:"status"`

	// Document holds the national registry number: CPF for individuals,
	// CNPJ for organizations.
	Document string `bson:"document,omitempty" json:"document,omitempty"`
	Phone    string `bson:"phone,omitempty" json:"phone,omitempty"`
	Address  string `bson:"address,omitempty" json:"address,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
