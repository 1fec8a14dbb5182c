package utils

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func parseFor(t *testing.T, target string) Pagination {
	t.Helper()

	var pg Pagination
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		pg = ParsePagination(c, map[string]string{
			"created_at": "created_at",
			"total":      "total",
		}, "created_at")
		return nil
	})

	resp, err := app.Test(httptest.NewRequest("GET", target, nil))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	return pg
}

func TestParsePaginationDefaults(t *testing.T) {
	pg := parseFor(t, "/")
	if pg.Page != 1 || pg.Limit != 20 || pg.Offset != 0 {
		t.Fatalf("defaults = %+v", pg)
	}
	if pg.OrderClause() != "created_at desc" {
		t.Fatalf("OrderClause = %q", pg.OrderClause())
	}
}

func TestParsePaginationSortWhitelist(t *testing.T) {
	pg := parseFor(t, "/?sortBy=total&sortOrder=asc")
	if pg.OrderClause() != "total asc" {
		t.Fatalf("OrderClause = %q", pg.OrderClause())
	}

	// Unknown columns fall back to the default instead of reaching SQL.
	pg = parseFor(t, "/?sortBy=password_hash;drop&sortOrder=asc")
	if pg.OrderClause() != "created_at asc" {
		t.Fatalf("OrderClause = %q", pg.OrderClause())
	}
}

func TestParsePaginationBounds(t *testing.T) {
	pg := parseFor(t, "/?page=3&limit=10")
	if pg.Offset != 20 {
		t.Fatalf("Offset = %d, want 20", pg.Offset)
	}

	pg = parseFor(t, "/?page=-1&limit=1000")
	if pg.Page != 1 || pg.Limit != 100 {
		t.Fatalf("clamped = %+v", pg)
	}
}

func TestTotalPages(t *testing.T) {
	pg := Pagination{Limit: 20}
	for total, want := range map[int64]int64{0: 0, 1: 1, 20: 1, 21: 2, 200: 10} {
		if got := pg.TotalPages(total); got != want {
			t.Errorf("TotalPages(%d) = %d, want %d", total, got, want)
		}
	}
}
