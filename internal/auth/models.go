package auth

import "time"

// Session is the single live session of a user.
type Session struct {
	SessionID string    `gorm:"primaryKey"`
	UserID    string    `gorm:"not null;unique"`
	ExpiresAt time.Time `gorm:"not null"`
}

type User struct {
	UserID         string  `gorm:"primaryKey" json:"user_id"`
	Username       string  `gorm:"size:150;not null;uniqueIndex" json:"username"`
	HashedPassword string  `gorm:"not null" json:"-"`
	Role           string  `gorm:"size:20;not null;default:user" json:"role"`
	Session        Session `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)
