package pagination

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 50
	// MaxPage keeps (Page-1)*Limit well inside an int32 OFFSET.
	MaxPage = 100000
)

// Pagination carries page/limit query parameters.
type Pagination struct {
	Page  int `form:"page"`
	Limit int `form:"limit"`
}

// Normalize applies defaults, caps the limit at MaxLimit and the page at
// MaxPage.
func (p Pagination) Normalize() Pagination {
	if p.Page < 1 {
		p.Page = DefaultPage
	}
	if p.Page > MaxPage {
		p.Page = MaxPage
	}
	if p.Limit < 1 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	return p
}

func (p Pagination) Offset() int {
	p = p.Normalize()
	return (p.Page - 1) * p.Limit
}

// Page is the infinity-pagination envelope: callers fetch limit+1 rows and
// the extra row only signals that another page exists.
type Page[T any] struct {
	Data        []T  `json:"data"`
	HasNextPage bool `json:"hasNextPage"`
}

func BuildPage[T any](rows []T, p Pagination) Page[T] {
	p = p.Normalize()
	hasNext := len(rows) > p.Limit
	if hasNext {
		rows = rows[:p.Limit]
	}
	if rows == nil {
		rows = []T{}
	}
	return Page[T]{Data: rows, HasNextPage: hasNext}
}
