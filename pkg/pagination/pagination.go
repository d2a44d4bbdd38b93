// Package pagination holds the page arithmetic shared by the notes server
// and the client data layer.
package pagination

const (
	// DefaultPage is used when a request omits the page number.
	DefaultPage = 1
	// DefaultLimit is the canonical page size.
	DefaultLimit = 10
)

// Meta describes one page of a paginated result.
type Meta struct {
	Total      int `json:"total"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalPages int `json:"totalPages"`
}

// Offset returns the number of records to skip for page (1-based).
func Offset(page, limit int) int {
	if page < 1 || limit < 1 {
		return 0
	}
	return (page - 1) * limit
}

// TotalPages returns ceil(total/limit). An empty result has zero pages.
func TotalPages(total, limit int) int {
	if total <= 0 || limit < 1 {
		return 0
	}
	return (total + limit - 1) / limit
}

// NewMeta builds the page metadata for a result of total matches.
func NewMeta(total, page, limit int) Meta {
	return Meta{
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: TotalPages(total, limit),
	}
}

// HasNext reports whether a page follows m.
func (m Meta) HasNext() bool {
	return m.Page < m.TotalPages
}

// NextPage returns the page after m, or false when m is the last page.
func (m Meta) NextPage() (int, bool) {
	if !m.HasNext() {
		return 0, false
	}
	return m.Page + 1, true
}
