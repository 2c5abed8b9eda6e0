package model

import (
	"time"
)

// Rules is a stored rule set. The most recently created row is active.
type Rules struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Version   string    `gorm:"size:32" json:"version"`
	Source    string    `gorm:"type:text" json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// RulesStore gives access to the active rule set.
type RulesStore interface {
	// Current returns the active rules, or (nil, nil) if none were stored.
	Current() (*Rules, error)
	Save(rules *Rules) error
}
