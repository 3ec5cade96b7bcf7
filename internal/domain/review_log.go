package domain

import "time"

// ReviewLog records a single accepted review of a card.
type ReviewLog struct {
	ID            string    `json:"id" db:"id"`
	CardID        string    `json:"cardId" db:"card_id"`
	UserID        string    `json:"-" db:"user_id"`
	Rating        Rating    `json:"rating" db:"rating"`
	StateBefore   State     `json:"stateBefore" db:"state_before"`
	StateAfter    State     `json:"stateAfter" db:"state_after"`
	ElapsedDays   float64   `json:"elapsedDays" db:"elapsed_days"`
	ScheduledDays float64   `json:"scheduledDays" db:"scheduled_days"`
	Reps          int       `json:"reps" db:"reps"`
	DueDate       time.Time `json:"dueDate" db:"due_date"`
	ReviewedAt    time.Time `json:"reviewedAt" db:"reviewed_at"`
}
