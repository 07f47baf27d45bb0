package store

// Page describes a requested page of results. Page numbering starts at
// 1; page 0 is accepted and treated as the first page.
type Page struct {
	Page    int
	PerPage int
}

// Offset returns the SQL offset for the page
func (p Page) Offset() int {
	if p.Page <= 1 {
		return 0
	}
	return (p.Page - 1) * p.PerPage
}
