package mirror

import (
	"context"
	"strconv"

	"firebase.google.com/go/v4/db"
)

// DocumentUpdater merges fields into the document at path.
type DocumentUpdater interface {
	Update(ctx context.Context, path string, fields map[string]interface{}) error
}

type rtdb struct {
	client *db.Client
}

// NewRTDB adapts an Admin SDK Realtime Database client.
func NewRTDB(client *db.Client) DocumentUpdater { return rtdb{client: client} }

func (r rtdb) Update(ctx context.Context, path string, fields map[string]interface{}) error {
	return r.client.NewRef(path).Update(ctx, fields)
}

// FirebaseMirror merges driver state into drivers/<id> of a Firebase
// Realtime Database. Nil coordinates are written as null, which clears them.
type FirebaseMirror struct {
	db DocumentUpdater
}

func NewFirebaseMirror(docs DocumentUpdater) *FirebaseMirror { return &FirebaseMirror{db: docs} }

func (f *FirebaseMirror) Update(ctx context.Context, driverID int64, s State) error {
	fields := map[string]interface{}{
		"available": s.Available,
		"latitude":  s.Latitude,
		"longitude": s.Longitude,
		"updatedAt": s.UpdatedAt,
	}
	return f.db.Update(ctx, "drivers/"+strconv.FormatInt(driverID, 10), fields)
}
