package pagination

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNormalizeLimit(t *testing.T) {
	if got := NormalizeLimit(0); got != DefaultLimit {
		t.Fatalf("NormalizeLimit(0) = %d, want %d", got, DefaultLimit)
	}
	if got := NormalizeLimit(-5); got != DefaultLimit {
		t.Fatalf("NormalizeLimit(-5) = %d, want %d", got, DefaultLimit)
	}
	if got := NormalizeLimit(500); got != MaxLimit {
		t.Fatalf("NormalizeLimit(500) = %d, want %d", got, MaxLimit)
	}
	if got := NormalizeLimit(10); got != 10 {
		t.Fatalf("NormalizeLimit(10) = %d, want 10", got)
	}
	if got := LimitWithBuffer(10); got != 11 {
		t.Fatalf("LimitWithBuffer(10) = %d, want 11", got)
	}
}

func TestCursorRoundTrip(t *testing.T) {
	orig := Cursor{
		CreatedAt: time.Date(2025, 3, 10, 12, 30, 0, 123456789, time.UTC),
		ID:        uuid.New(),
	}

	encoded := EncodeCursor(orig)
	decoded, err := ParseCursor(encoded)
	if err != nil {
		t.Fatalf("ParseCursor returned error: %v", err)
	}
	if decoded == nil {
		t.Fatal("expected non-nil cursor")
	}
	if !decoded.CreatedAt.Equal(orig.CreatedAt) || decoded.ID != orig.ID {
		t.Fatalf("round trip mismatch: %+v vs %+v", decoded, orig)
	}
}

func TestParseCursorEmptyAndInvalid(t *testing.T) {
	cursor, err := ParseCursor("  ")
	if err != nil || cursor != nil {
		t.Fatalf("blank cursor should return nil, nil; got %v, %v", cursor, err)
	}
	if _, err := ParseCursor("!!not-base64!!"); err == nil {
		t.Fatal("expected error for invalid base64")
	}
	if _, err := ParseCursor("bm90LWEtY3Vyc29y"); err == nil {
		t.Fatal("expected error for malformed payload")
	}
}
