package pagination

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestCursorRoundTrip(t *testing.T) {
	original := Cursor{CreatedAt: time.Date(2024, 5, 1, 12, 30, 0, 123, time.UTC), ID: uuid.New()}
	parsed, err := ParseCursor(EncodeCursor(original))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !parsed.CreatedAt.Equal(original.CreatedAt) || parsed.ID != original.ID {
		t.Fatalf("cursor mismatch: %+v vs %+v", parsed, original)
	}
}

func TestParseCursorRejectsGarbage(t *testing.T) {
	if c, err := ParseCursor(""); err != nil || c != nil {
		t.Fatalf("blank cursor should be nil, got %v %v", c, err)
	}
	for _, raw := range []string{"%%%", "bm9waXBl", "eHx5"} {
		if _, err := ParseCursor(raw); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
}

func TestNormalizeLimit(t *testing.T) {
	cases := map[int]int{0: DefaultLimit, -3: DefaultLimit, 10: 10, MaxLimit + 50: MaxLimit}
	for in, want := range cases {
		if got := NormalizeLimit(in); got != want {
			t.Fatalf("NormalizeLimit(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestTrim(t *testing.T) {
	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	key := func(id uuid.UUID) Cursor { return Cursor{ID: id} }

	page, next := Trim(ids, 2, key)
	if len(page) != 2 || next == nil || next.ID != ids[1] {
		t.Fatalf("unexpected page %v next %v", page, next)
	}
	page, next = Trim(ids[:2], 2, key)
	if len(page) != 2 || next != nil {
		t.Fatalf("expected final page without cursor")
	}
	if NextCursor(nil) != "" {
		t.Fatal("expected empty cursor string")
	}
}

func TestParseCursorRequiresPosition(t *testing.T) {
	if _, err := ParseCursor(EncodeCursor(Cursor{CreatedAt: time.Now()})); err == nil {
		t.Fatal("expected cursor without id to be rejected")
	}
}

func TestEncodeCursorIsURLSafe(t *testing.T) {
	raw := EncodeCursor(Cursor{CreatedAt: time.Now(), ID: uuid.New()})
	if strings.ContainsAny(raw, "+/=") {
		t.Fatalf("cursor %q is not url safe", raw)
	}
}
