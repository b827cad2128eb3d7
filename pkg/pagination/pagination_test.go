package pagination

import (
	"net/http/httptest"
	"testing"
)

func TestNormalizeBounds(t *testing.T) {
	cases := []struct {
		name      string
		in        Params
		wantPage  int
		wantLimit int
	}{
		{"zero values", Params{}, 1, DefaultLimit},
		{"negative page", Params{Page: -3, Limit: 10}, 1, 10},
		{"limit over max", Params{Page: 2, Limit: 500}, 2, MaxLimit},
		{"valid", Params{Page: 4, Limit: 24}, 4, 24},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.in.Normalize()
			if got.Page != tc.wantPage || got.Limit != tc.wantLimit {
				t.Fatalf("Normalize() = %+v, want page=%d limit=%d", got, tc.wantPage, tc.wantLimit)
			}
		})
	}
}

func TestOffset(t *testing.T) {
	if got := (Params{Page: 3, Limit: 12}).Offset(); got != 24 {
		t.Fatalf("Offset() = %d, want 24", got)
	}
	if got := (Params{}).Offset(); got != 0 {
		t.Fatalf("Offset() = %d, want 0", got)
	}
}

func TestBuildPage(t *testing.T) {
	page := BuildPage(Params{Page: 2, Limit: 10}, 25)
	if page.TotalPages != 3 {
		t.Fatalf("TotalPages = %d, want 3", page.TotalPages)
	}
	if page.TotalItems != 25 {
		t.Fatalf("TotalItems = %d, want 25", page.TotalItems)
	}

	empty := BuildPage(Params{}, 0)
	if empty.TotalPages != 1 {
		t.Fatalf("TotalPages for empty listing = %d, want 1", empty.TotalPages)
	}
}

func TestFromRequest(t *testing.T) {
	r := httptest.NewRequest("GET", "/products?page=3&limit=20", nil)
	params := FromRequest(r)
	if params.Page != 3 || params.Limit != 20 {
		t.Fatalf("FromRequest() = %+v", params)
	}

	r = httptest.NewRequest("GET", "/products?page=abc&limit=-1", nil)
	params = FromRequest(r)
	if params.Page != 1 || params.Limit != DefaultLimit {
		t.Fatalf("FromRequest() malformed = %+v", params)
	}
}
