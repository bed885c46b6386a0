package models

import "time"

// Department groups faculty and courses.
type Department struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Code        string    `db:"code" json:"code"`
	Description *string   `db:"description" json:"description,omitempty"`
	HeadID      *string   `db:"head_id" json:"head_id,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// DepartmentDetail adds the head's name and member counts.
type DepartmentDetail struct {
	Department
	HeadName     *string `db:"head_name" json:"head_name,omitempty"`
	CoursesCount int     `db:"courses_count" json:"courses_count"`
}

// DepartmentFilter scopes department listings.
type DepartmentFilter struct {
	Search   string
	Page     int
	PageSize int
}
