package models

import (
	"encoding/base64"
	"strings"
	"time"

	"github.com/mmdatafocus/kitchen_backend/utils"
)

// EncodeCompositeCursor points just past (createdAt, id) in a list ordered
// by created_at DESC, id.
func EncodeCompositeCursor(createdAt time.Time, id string) string {
	cursor := createdAt.UTC().Format(time.RFC3339Nano) + "|" + id
	return base64.RawURLEncoding.EncodeToString([]byte(cursor))
}

func DecodeCompositeCursor(cursor string) (time.Time, string, error) {
	decoded, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return time.Time{}, "", utils.Validation("invalid cursor")
	}
	createdAt, id, ok := strings.Cut(string(decoded), "|")
	if !ok || id == "" {
		return time.Time{}, "", utils.Validation("invalid cursor")
	}
	t, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return time.Time{}, "", utils.Validation("invalid cursor")
	}
	return t.UTC(), id, nil
}

// NextCursor returns the cursor for the page after orders, or "" when the
// page was not full.
func NextCursor(orders []*Order, limit int) string {
	if len(orders) == 0 || len(orders) < limit {
		return ""
	}
	last := orders[len(orders)-1]
	return EncodeCompositeCursor(last.CreatedAt, last.ID)
}
