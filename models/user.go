package models

import (
	"time"

	"gorm.io/gorm"
)

type User struct {
	gorm.Model
	Email         string    `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash  string    `gorm:"not null" json:"-"`
	ResetToken    string    `gorm:"index" json:"-"`
	ResetTokenExp time.Time `json:"-"`
	ResetAttempts int       `gorm:"not null;default:0" json:"-"`

	Events  []Event  `json:"-"`
	Moments []Moment `json:"-"`
}
