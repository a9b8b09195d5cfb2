package models

import "time"

type Retrospective struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Date      string    `json:"date"`
	Title     string    `json:"title"`
	Category  string    `json:"category"`
	Content   string    `json:"content"`
	Tags      []string  `json:"tags"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

const (
	CategoryKeep    = "keep"
	CategoryStop    = "stop"
	CategoryStart   = "start"
	CategoryImprove = "improve"
)

var categories = []string{CategoryKeep, CategoryStop, CategoryStart, CategoryImprove}

func ValidCategory(value string) bool {
	for _, category := range categories {
		if category == value {
			return true
		}
	}
	return false
}

// Categories returns the four fixed categories in display order.
func Categories() []string {
	result := make([]string, len(categories))
	copy(result, categories)
	return result
}
