package store

import "testing"

// TestPageOffset tests the page-to-offset mapping, including the
// page=0 alias for the first page.
func TestPageOffset(t *testing.T) {
	tests := []struct {
		page    int
		perPage int
		want    int
	}{
		{0, 10, 0},
		{1, 10, 0},
		{2, 10, 10},
		{5, 25, 100},
	}

	for _, tt := range tests {
		p := Page{Page: tt.page, PerPage: tt.perPage}
		if got := p.Offset(); got != tt.want {
			t.Errorf("Page{%d,%d}.Offset() = %d, want %d", tt.page, tt.perPage, got, tt.want)
		}
	}
}
