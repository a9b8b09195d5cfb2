package store

import (
	"context"
	"time"

	"github.com/MinWook6457/Re-cord/internal/models"
)

type RegisterInput struct {
	Email    string
	Password string
	Name     string
}

type RetrospectiveInput struct {
	Date     string
	Title    string
	Category string
	Content  string
	Tags     []string
}

type ListFilter struct {
	Category string
	Tag      string
}

type Stats struct {
	Total       int            `json:"total"`
	ByCategory  map[string]int `json:"by_category"`
	LastUpdated *time.Time     `json:"last_updated"`
}

type Store interface {
	Register(ctx context.Context, input RegisterInput) (models.User, error)
	Login(ctx context.Context, email, password string) (models.User, error)
	GetUser(ctx context.Context, userID string) (models.User, error)

	ListRetrospectives(ctx context.Context, userID string, filter ListFilter) ([]models.Retrospective, error)
	GetRetrospective(ctx context.Context, userID, id string) (models.Retrospective, error)
	CreateRetrospective(ctx context.Context, userID string, input RetrospectiveInput) (models.Retrospective, error)
	UpdateRetrospective(ctx context.Context, userID, id string, input RetrospectiveInput) (models.Retrospective, error)
	DeleteRetrospective(ctx context.Context, userID, id string) error
	GetStats(ctx context.Context, userID string) (Stats, error)
}
