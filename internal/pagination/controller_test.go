package pagination

import "testing"

func TestTotalPages(t *testing.T) {
	tests := []struct {
		total, size, want int
	}{
		{0, 9, 0},
		{1, 9, 1},
		{9, 9, 1},
		{10, 9, 2},
		{20, 9, 3},
		{20, 6, 4},
		{27, 9, 3},
	}
	for _, tt := range tests {
		c := New(tt.size)
		c.SetTotalCount(tt.total)
		if got := c.TotalPages(); got != tt.want {
			t.Errorf("TotalPages(total=%d, size=%d) = %d, want %d", tt.total, tt.size, got, tt.want)
		}
	}
}

func TestGoToPageBounds(t *testing.T) {
	c := New(9)
	c.SetTotalCount(20)

	if c.GoToPage(0) || c.Page() != 1 {
		t.Errorf("GoToPage(0) moved to %d", c.Page())
	}
	if c.GoToPage(4) || c.Page() != 1 {
		t.Errorf("GoToPage(4) moved to %d", c.Page())
	}
	if !c.GoToPage(3) || c.Page() != 3 {
		t.Errorf("GoToPage(3) -> page %d, want 3", c.Page())
	}
}

func TestChangeLimitResetsPage(t *testing.T) {
	c := New(9)
	c.SetTotalCount(20)
	c.GoToPage(2)

	c.ChangeLimit(6)

	if c.Page() != 1 || c.TotalPages() != 4 || c.PageSize() != 6 {
		t.Errorf("after ChangeLimit(6): page %d of %d (size %d), want page 1 of 4 (size 6)",
			c.Page(), c.TotalPages(), c.PageSize())
	}
}

func TestNextPrev(t *testing.T) {
	c := New(9)
	c.SetTotalCount(20)

	if c.HasPrev() || c.Prev() {
		t.Error("page 1 should have no previous page")
	}
	c.Next()
	c.Next()
	if c.Page() != 3 {
		t.Fatalf("Page() = %d, want 3", c.Page())
	}
	if c.HasNext() || c.Next() {
		t.Error("last page should have no next page")
	}
	if !c.Prev() || c.Page() != 2 {
		t.Errorf("Prev() -> page %d, want 2", c.Page())
	}

	c.Reset()
	if c.Page() != 1 {
		t.Errorf("Reset() -> page %d, want 1", c.Page())
	}
}

func TestEmptyResultHasNoPages(t *testing.T) {
	c := New(0)
	if c.PageSize() != 9 {
		t.Errorf("default PageSize() = %d, want 9", c.PageSize())
	}
	if c.HasNext() || c.HasPrev() || c.GoToPage(1) {
		t.Error("empty result should allow no navigation")
	}
	if c.Page() != 1 {
		t.Errorf("Page() = %d, want 1", c.Page())
	}
}

func TestSetTotalCountClampsPage(t *testing.T) {
	c := New(9)
	c.SetTotalCount(19)
	c.GoToPage(3)

	// the only row of page 3 was deleted
	c.SetTotalCount(18)
	if c.Page() != 2 {
		t.Errorf("Page() = %d, want 2", c.Page())
	}

	c.SetTotalCount(0)
	if c.Page() != 1 {
		t.Errorf("empty result should land on page 1, got %d", c.Page())
	}
}
