package pagination

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgerrors "github.com/farmconnect/farmconnect-backend/pkg/errors"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Params is the raw page request taken from the query string.
type Params struct {
	Limit  int
	Cursor string
}

// Page is one slice of a newest-first listing. NextCursor is empty on the last page.
type Page[T any] struct {
	Items      []T    `json:"items"`
	NextCursor string `json:"next_cursor,omitempty"`
}

// Cursor is the (created_at, id) key of the last row a client saw.
type Cursor struct {
	CreatedAt time.Time `json:"t"`
	ID        uuid.UUID `json:"id"`
}

// NormalizeLimit clamps limit into [1, MaxLimit], using DefaultLimit for
// non-positive input.
func NormalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	}
	return limit
}

// EncodeCursor renders c as URL-safe base64 JSON, so it can go into a query
// string without escaping.
func EncodeCursor(c Cursor) string {
	c.CreatedAt = c.CreatedAt.UTC()
	raw, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(raw)
}

// ParseCursor decodes a cursor from EncodeCursor. An empty string means the
// first page and yields nil.
func ParseCursor(value string) (*Cursor, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return nil, invalidCursor(err)
	}
	var c Cursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, invalidCursor(err)
	}
	if c.CreatedAt.IsZero() || c.ID == uuid.Nil {
		return nil, invalidCursor(nil)
	}
	return &c, nil
}

func invalidCursor(cause error) error {
	return pkgerrors.Wrap(pkgerrors.CodeValidation, cause, "invalid cursor").
		WithDetails(map[string]any{"query": "cursor"})
}

// ApplyNewestFirst orders query by (created_at, id) descending, keeps rows
// strictly older than cursor and fetches one row past the page to detect a
// next page. table qualifies the columns when the query joins.
func ApplyNewestFirst(query *gorm.DB, table string, cursor *Cursor, limit int) *gorm.DB {
	createdAt, id := "created_at", "id"
	if table != "" {
		createdAt, id = table+"."+createdAt, table+"."+id
	}
	if cursor != nil {
		at := cursor.CreatedAt.UTC()
		query = query.Where(fmt.Sprintf("%[1]s < ? OR (%[1]s = ? AND %[2]s < ?)", createdAt, id), at, at, cursor.ID)
	}
	return query.
		Order(createdAt + " DESC").
		Order(id + " DESC").
		Limit(NormalizeLimit(limit) + 1)
}

// BuildPage drops the lookahead row fetched by ApplyNewestFirst and sets
// NextCursor from the last row kept.
func BuildPage[T any](rows []T, limit int, cursorOf func(T) Cursor) Page[T] {
	limit = NormalizeLimit(limit)
	page := Page[T]{Items: rows}
	if len(rows) > limit {
		page.Items = rows[:limit]
		page.NextCursor = EncodeCursor(cursorOf(page.Items[limit-1]))
	}
	if page.Items == nil {
		page.Items = []T{}
	}
	return page
}

// Map converts the items of a page, keeping its cursor.
func Map[T, U any](page Page[T], convert func(T) U) Page[U] {
	out := Page[U]{Items: make([]U, 0, len(page.Items)), NextCursor: page.NextCursor}
	for _, item := range page.Items {
		out.Items = append(out.Items, convert(item))
	}
	return out
}
