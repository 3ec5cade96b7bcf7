package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Rating is the user's recall-quality feedback for one review.
type Rating int

const (
	Again Rating = 1
	Hard  Rating = 2
	Good  Rating = 3
	Easy  Rating = 4
)

// Ratings lists every valid rating in ascending order.
var Ratings = [...]Rating{Again, Hard, Good, Easy}

var ratingNames = [...]string{Again: "Again", Hard: "Hard", Good: "Good", Easy: "Easy"}

// IsValid reports whether r is Again, Hard, Good or Easy.
func (r Rating) IsValid() bool {
	return r >= Again && r <= Easy
}

func (r Rating) String() string {
	if r.IsValid() {
		return ratingNames[r]
	}
	return fmt.Sprintf("Rating(%d)", int(r))
}

// ParseRating converts a rating name ("Good") or number ("3").
func ParseRating(s string) (Rating, error) {
	for i, n := range ratingNames {
		if i > 0 && n == s {
			return Rating(i), nil
		}
	}
	if n, err := strconv.Atoi(s); err == nil && Rating(n).IsValid() {
		return Rating(n), nil
	}
	return 0, fmt.Errorf("%w: rating %q", ErrValidation, s)
}

// MarshalJSON serializes the rating as its name.
func (r Rating) MarshalJSON() ([]byte, error) {
	if !r.IsValid() {
		return nil, fmt.Errorf("%w: rating %d", ErrValidation, int(r))
	}
	return json.Marshal(ratingNames[r])
}

// UnmarshalJSON accepts either the rating name or its number 1-4.
func (r *Rating) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("%w: rating %s", ErrValidation, data)
		}
		v, err := ParseRating(s)
		if err != nil {
			return err
		}
		*r = v
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil || !Rating(n).IsValid() {
		return fmt.Errorf("%w: rating %s", ErrValidation, data)
	}
	*r = Rating(n)
	return nil
}
