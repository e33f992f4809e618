package models

import "time"

type User struct {
	ID               int        `json:"id" db:"id"`
	Username         string     `json:"username" db:"username"`
	PasswordHash     string     `json:"-" db:"password_hash"`
	Fullname         string     `json:"fullname" db:"fullname"`
	Email            string     `json:"email" db:"email"`
	Phone            string     `json:"phone" db:"phone"`
	Department       string     `json:"department" db:"department"`
	Role             string     `json:"role" db:"role"`
	IsActive         bool       `json:"is_active" db:"is_active"`
	AutoEnableAt     *time.Time `json:"auto_enable_at,omitempty" db:"auto_enable_at"`
	HasLimitedAccess bool       `json:"has_limited_access" db:"has_limited_access"`
}

func (u *User) CreateLogView() ActivityLog {
	return ActivityLog{
		EntityID:   u.ID,
		EntityType: "user",
	}
}

type CreateUserRequest struct {
	Username   string `json:"username" binding:"required"`
	Password   string `json:"password" binding:"required"`
	Fullname   string `json:"fullname" binding:"required"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Department string `json:"department"`
	Role       string `json:"role" binding:"required"`
}

type UpdateUserRequest struct {
	Password         *string    `json:"password,omitempty"`
	Fullname         *string    `json:"fullname,omitempty"`
	Email            *string    `json:"email,omitempty"`
	Phone            *string    `json:"phone,omitempty"`
	Department       *string    `json:"department,omitempty"`
	Role             *string    `json:"role,omitempty"`
	IsActive         *bool      `json:"is_active,omitempty"`
	AutoEnableAt     *time.Time `json:"auto_enable_at,omitempty"`
	HasLimitedAccess *bool      `json:"has_limited_access,omitempty"`
}

// UserChanges carries only the fields an update actually touches.
type UserChanges struct {
	PasswordHash     *string
	Fullname         *string
	Email            *string
	Phone            *string
	Department       *string
	Role             *string
	IsActive         *bool
	AutoEnableAt     *time.Time
	HasLimitedAccess *bool
}

func (c *UserChanges) HasChanges() bool {
	return c.PasswordHash != nil || c.Fullname != nil || c.Email != nil ||
		c.Phone != nil || c.Department != nil || c.Role != nil ||
		c.IsActive != nil || c.AutoEnableAt != nil || c.HasLimitedAccess != nil
}

// UserSession is the single live session a user may hold. Logging in
// elsewhere replaces the row, which invalidates the older session key.
type UserSession struct {
	UserID     int       `json:"user_id" db:"user_id"`
	SessionKey string    `json:"session_key" db:"session_key"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	ExpiresAt  time.Time `json:"expires_at" db:"expires_at"`
}

type AdminPermission struct {
	ID       int    `json:"id" db:"id"`
	Codename string `json:"codename" db:"codename"`
	Label    string `json:"label" db:"label"`
}
