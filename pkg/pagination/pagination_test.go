package pagination

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestCursorRoundTrip(t *testing.T) {
	want := Cursor{CreatedAt: time.Date(2026, 5, 1, 10, 30, 0, 123, time.UTC), ID: uuid.New()}

	encoded := EncodeCursor(want)
	if strings.ContainsAny(encoded, "+/=") {
		t.Fatalf("cursor %q is not query-string safe", encoded)
	}
	got, err := ParseCursor(encoded)
	if err != nil {
		t.Fatalf("parse cursor: %v", err)
	}
	if !got.CreatedAt.Equal(want.CreatedAt) || got.ID != want.ID {
		t.Fatalf("cursor mismatch: got %+v want %+v", got, want)
	}

	if c, err := ParseCursor("  "); err != nil || c != nil {
		t.Fatalf("blank cursor should be nil, got %+v err=%v", c, err)
	}
}

func TestParseCursorRejectsGarbage(t *testing.T) {
	enc := func(s string) string { return base64.RawURLEncoding.EncodeToString([]byte(s)) }
	for _, value := range []string{
		"not base64!",
		enc("no-separator"),
		enc("yesterday." + uuid.NewString()),
		enc("1700000000.not-a-uuid"),
	} {
		if _, err := ParseCursor(value); !errors.Is(err, ErrInvalidCursor) {
			t.Errorf("ParseCursor(%q) = %v, want ErrInvalidCursor", value, err)
		}
	}
}

func TestNormalizeLimit(t *testing.T) {
	cases := []struct{ in, want int }{{0, DefaultLimit}, {-3, DefaultLimit}, {10, 10}, {500, MaxLimit}}
	for _, tc := range cases {
		if got := NormalizeLimit(tc.in); got != tc.want {
			t.Fatalf("NormalizeLimit(%d) = %d, want %d", tc.in, got, tc.want)
		}
	}
	if LimitWithBuffer(0) != DefaultLimit+1 {
		t.Fatal("buffer should add one row to the default")
	}
}

func TestNextCursor(t *testing.T) {
	base := time.Now().UTC()
	rows := []Cursor{
		{CreatedAt: base, ID: uuid.New()},
		{CreatedAt: base.Add(-time.Minute), ID: uuid.New()},
		{CreatedAt: base.Add(-2 * time.Minute), ID: uuid.New()},
	}

	page, next := NextCursor(rows, 2, func(c Cursor) Cursor { return c })
	if len(page) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(page))
	}
	decoded, err := ParseCursor(next)
	if err != nil || decoded.ID != rows[1].ID {
		t.Fatalf("next cursor should point at last row of page, got %+v err=%v", decoded, err)
	}

	page, next = NextCursor(rows, 5, func(c Cursor) Cursor { return c })
	if len(page) != 3 || next != "" {
		t.Fatalf("expected final page without cursor, got %d rows next=%q", len(page), next)
	}
}

type entry struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time
}

func TestApplyDescendingWalksEveryRowOnce(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&entry{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	// Two rows share a timestamp so the id tiebreak is exercised.
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		if err := conn.Create(&entry{ID: uuid.New(), CreatedAt: base.Add(time.Duration(i/2) * time.Second)}).Error; err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	seen := map[uuid.UUID]bool{}
	var cursor *Cursor
	for pages := 0; pages < 10; pages++ {
		var rows []entry
		if err := ApplyDescending(conn.Model(&entry{}), "", cursor).Limit(LimitWithBuffer(2)).Find(&rows).Error; err != nil {
			t.Fatalf("page query: %v", err)
		}
		page, next := NextCursor(rows, 2, func(e entry) Cursor { return Cursor{CreatedAt: e.CreatedAt, ID: e.ID} })
		for _, e := range page {
			if seen[e.ID] {
				t.Fatalf("row %s returned twice", e.ID)
			}
			seen[e.ID] = true
		}
		if next == "" {
			break
		}
		if cursor, err = ParseCursor(next); err != nil {
			t.Fatalf("parse next: %v", err)
		}
	}
	if len(seen) != 5 {
		t.Fatalf("expected to walk 5 rows, saw %d", len(seen))
	}
}
