package blog

import (
	"strconv"
	"testing"
)

func TestPaginate(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		total    int
		wantPage int
		wantOff  int
		wantNext bool
		wantPrev bool
		wantPgs  int
	}{
		{"empty first page", "", 0, 1, 0, false, false, 1},
		{"first of two", "", 13, 1, 0, true, false, 2},
		{"second of two", "2", 13, 2, 10, false, true, 2},
		{"garbage selects first", "abc", 13, 1, 0, true, false, 2},
		{"past the end selects last", "9", 13, 2, 10, false, true, 2},
		{"zero selects last", "0", 13, 2, 10, false, true, 2},
		{"negative selects last", "-5", 13, 2, 10, false, true, 2},
		{"overflow selects last", "99999999999999999999", 13, 2, 10, false, true, 2},
		{"negative overflow selects last", "-99999999999999999999", 13, 2, 10, false, true, 2},
		{"exact multiple", "2", 20, 2, 10, false, true, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Paginate(tt.raw, tt.total, 10)
			if p.CurrentPage != tt.wantPage {
				t.Errorf("page = %d, want %d", p.CurrentPage, tt.wantPage)
			}
			if p.Offset() != tt.wantOff {
				t.Errorf("offset = %d, want %d", p.Offset(), tt.wantOff)
			}
			if p.HasNext != tt.wantNext || p.HasPrev != tt.wantPrev {
				t.Errorf("next/prev = %v/%v, want %v/%v", p.HasNext, p.HasPrev, tt.wantNext, tt.wantPrev)
			}
			if p.TotalPages != tt.wantPgs {
				t.Errorf("total pages = %d, want %d", p.TotalPages, tt.wantPgs)
			}
		})
	}
}

func TestPaginatePageSizes(t *testing.T) {
	// every full page holds exactly pageSize items and the last holds the rest
	for total := 0; total <= 35; total++ {
		pages := Paginate("", total, 10).TotalPages
		seen := 0
		for k := 1; k <= pages; k++ {
			p := Paginate(strconv.Itoa(k), total, 10)
			n := min(p.Limit(), total-p.Offset())
			if k*10 <= total && n != 10 {
				t.Fatalf("total %d page %d holds %d items", total, k, n)
			}
			seen += n
		}
		if seen != total {
			t.Fatalf("total %d: pages cover %d items", total, seen)
		}
	}
}
