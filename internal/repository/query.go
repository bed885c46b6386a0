package repository

import (
	"fmt"
	"strings"

	"github.com/noah-isme/tclass-api/internal/models"
)

// enrolledInCourse matches courses (aliased c) the student holds an active enrollment for,
// either directly or through a program-level enrollment without a course.
const enrolledInCourse = "EXISTS (SELECT 1 FROM enrollments en WHERE en.user_id = ? AND en.status = 'active' AND (en.course_id = c.id OR (en.course_id IS NULL AND en.program_id = c.program_id)))"

// filterBuilder accumulates AND-ed conditions. Every "?" in a clause becomes the next positional placeholder.
type filterBuilder struct {
	conditions []string
	args       []interface{}
}

func (b *filterBuilder) add(clause string, arg interface{}) {
	b.args = append(b.args, arg)
	b.conditions = append(b.conditions, strings.ReplaceAll(clause, "?", fmt.Sprintf("$%d", len(b.args))))
}

func (b *filterBuilder) where() string {
	if len(b.conditions) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(b.conditions, " AND ")
}

func likePattern(search string) string {
	return "%" + strings.ToLower(strings.TrimSpace(search)) + "%"
}

func pageWindow(page, size int) (limit, offset int) {
	page, size = models.NormalizePage(page, size)
	return size, (page - 1) * size
}

// orderClause maps a client sort key onto a whitelisted column expression.
func orderClause(allowed map[string]string, sortBy, sortOrder, fallback string) string {
	column, ok := allowed[sortBy]
	if !ok {
		column = allowed[fallback]
	}
	order := strings.ToUpper(sortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	return column + " " + order
}
