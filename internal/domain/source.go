package domain

import "time"

// SourceType tells the syncer how to fetch a deck source.
type SourceType string

const (
	SourceLocal SourceType = "local"
	SourceGit   SourceType = "git"
)

// Source is a directory or git repository of deck files that a user
// imports cards from.
type Source struct {
	ID          string     `json:"id" db:"id"`
	UserID      string     `json:"-" db:"user_id"`
	Type        SourceType `json:"type" db:"type"`
	Path        string     `json:"path" db:"path"`
	Language    Language   `json:"language" db:"language"`
	LastScanned *time.Time `json:"lastScanned,omitempty" db:"last_scanned"`
	CreatedAt   time.Time  `json:"createdAt" db:"created_at"`
}
