package firestore

import (
	"fmt"
	"time"

	"github.com/farmstand/api/internal/platform/pagination"
)

// listCursor marks the last document of a page for createdAt-ordered queries.
type listCursor struct {
	ID        string
	CreatedAt time.Time
}

func encodeListCursor(cursor listCursor) (string, error) {
	token, err := pagination.EncodeToken(pagination.Cursor{
		StartAfter: []any{cursor.CreatedAt.UTC().Format(time.RFC3339Nano), cursor.ID},
	})
	if err != nil {
		return "", fmt.Errorf("encode page token: %w", err)
	}
	return token, nil
}

func decodeListCursor(encoded string) (listCursor, error) {
	decoded, err := pagination.DecodeToken(encoded)
	if err != nil {
		return listCursor{}, fmt.Errorf("decode page token: %w", err)
	}
	if len(decoded.StartAfter) != 2 {
		return listCursor{}, fmt.Errorf("decode page token: unexpected cursor shape")
	}
	rawTime, ok := decoded.StartAfter[0].(string)
	if !ok {
		return listCursor{}, fmt.Errorf("decode page token: invalid createdAt value")
	}
	createdAt, err := time.Parse(time.RFC3339Nano, rawTime)
	if err != nil {
		return listCursor{}, fmt.Errorf("decode page token: %w", err)
	}
	id, ok := decoded.StartAfter[1].(string)
	if !ok || id == "" {
		return listCursor{}, fmt.Errorf("decode page token: invalid document id")
	}
	return listCursor{ID: id, CreatedAt: createdAt}, nil
}
