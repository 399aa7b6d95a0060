package models

import "time"

// OwnerRole controls what a signed-in owner is allowed to see and resolve.
type OwnerRole string

const (
	// RoleMaster sees every portfolio and every combined group.
	RoleMaster OwnerRole = "master"
	// RoleOwner sees unowned portfolios plus portfolios listing them as an owner.
	RoleOwner OwnerRole = "owner"
	// RoleGuest sees only portfolios with no assigned owners.
	RoleGuest OwnerRole = "guest"
)

// Owner represents a household member using the dashboard.
type Owner struct {
	Base
	Email       string     `gorm:"uniqueIndex;not null" json:"email"`
	Password    string     `gorm:"not null" json:"-"`
	Name        string     `json:"name"`
	Role        OwnerRole  `gorm:"not null;default:'owner'" json:"role"`
	IsActive    bool       `gorm:"default:true" json:"is_active"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

// IsMaster reports whether the owner holds master privilege.
func (o *Owner) IsMaster() bool { return o.Role == RoleMaster }

// IsGuest reports whether the owner is a guest.
func (o *Owner) IsGuest() bool { return o.Role == RoleGuest }
