package entity

import (
	"consult-booking/core/access"
	"consult-booking/core/entity"
)

type User struct {
	FullName string `db:"full_name" json:"full_name"`
	Email    string `db:"email" json:"email"`
	Role     string `db:"role" json:"role"`
	entity.BaseEntity
}

func (u *User) AccessRole() access.Role {
	role, _ := access.ParseRole(u.Role)
	return role
}

func (u *User) DisplayName() string {
	if u.FullName != "" {
		return u.FullName
	}
	return u.Email
}
