package domain

import "time"

// Schedule is the spaced repetition memory state of a card.
// It is written only by the scheduler, never by clients.
type Schedule struct {
	Stability     float64   `json:"stability" db:"stability"`
	Difficulty    float64   `json:"difficulty" db:"difficulty"`
	State         State     `json:"state" db:"state"`
	LearningSteps int       `json:"learningSteps" db:"learning_steps"`
	Reps          int       `json:"reps" db:"reps"`
	Lapses        int       `json:"lapses" db:"lapses"`
	DueDate       time.Time `json:"dueDate" db:"due_date"`
}

// NewSchedule returns the schedule of a card that has never been reviewed.
// It is due immediately.
func NewSchedule(now time.Time) Schedule {
	return Schedule{
		State:   StateNew,
		DueDate: now,
	}
}

// Card is a flashcard owned by exactly one user.
type Card struct {
	ID         string   `json:"id" db:"id"`
	UserID     string   `json:"-" db:"user_id"`
	ContentID  *string  `json:"contentId,omitempty" db:"content_id"`
	Language   Language `json:"language" db:"language"`
	FrontText  string   `json:"frontText" db:"front_text"`
	BackText   string   `json:"backText" db:"back_text"`
	Details    *Details `json:"details,omitempty" db:"details"`
	SourceID   *string  `json:"sourceId,omitempty" db:"source_id"`
	SourceHash *string  `json:"-" db:"source_hash"`

	Schedule
	LastReviewedAt *time.Time `json:"lastReviewedAt,omitempty" db:"last_reviewed_at"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
	Version   int       `json:"-" db:"version"`
}

// CardDraft is a card parsed from a deck file, before it is stored.
type CardDraft struct {
	Front   string
	Back    string
	Context string
	Hash    string
}
