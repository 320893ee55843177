package task

import "time"

type Status string

const (
	StatusTodo       Status = "TODO"
	StatusInProgress Status = "IN_PROGRESS"
	StatusDone       Status = "DONE"
)

func (s Status) Valid() bool {
	return s == StatusTodo || s == StatusInProgress || s == StatusDone
}

type Task struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      Status    `json:"status"`
	OwnerID     string    `json:"ownerId"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Input carries a create or partial-update payload. Nil pointers on update
// mean "leave unchanged".
type Input struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Status      *Status `json:"status"`
}

// ListQuery is a validated pagination/filter/sort request.
type ListQuery struct {
	Page   int
	Limit  int
	Status Status // empty means no filter
	Sort   string // createdAt, updatedAt or title
	Order  string // asc or desc
}

type PageMeta struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

type Page struct {
	Data []Task   `json:"data"`
	Meta PageMeta `json:"meta"`
}
