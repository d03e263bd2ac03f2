package core

import "testing"

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Hello World":        "hello-world",
		"  Crème Brûlée!! ":  "creme-brulee",
		"---a__b---":         "a-b",
		"Ünïcödé Guild 2026": "unicode-guild-2026",
		"!!!":                "",
		"Hellö Wørld & Co":   "hello-world-and-co",
		"Straße 5":           "strasse-5",
		"v1.2_beta":          "v1-2-beta",
	}
	for input, want := range cases {
		if got := Slugify(input); got != want {
			t.Fatalf("Slugify(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestPageRequestNormalize(t *testing.T) {
	req := PageRequest{Page: 0, PerPage: 500}.Normalize()
	if req.Page != 1 || req.PerPage != 100 {
		t.Fatalf("unexpected normalized page: %+v", req)
	}
	if offset := (PageRequest{Page: 3, PerPage: 10}).Offset(); offset != 20 {
		t.Fatalf("expected offset 20, got %d", offset)
	}
	page := NewPage[int](nil, 0, PageRequest{})
	if page.Items == nil || page.PerPage != 20 {
		t.Fatalf("expected empty items and default per_page, got %+v", page)
	}
}
