package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/VidhuSarwal/chatshare/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const filesSequence = "files"

// nextFileID increments the files sequence and returns the new value.
func (s *MongoStore) nextFileID(ctx context.Context) (int64, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := s.countersCol.FindOneAndUpdate(ctx,
		bson.M{"_id": filesSequence},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("next file id: %w", err)
	}
	return counter.Seq, nil
}

// UpsertFile indexes a file by owner and path. Known paths keep their id.
func (s *MongoStore) UpsertFile(ctx context.Context, file *models.StoredFile) error {
	file.IndexedAt = time.Now().UTC()

	var existing models.StoredFile
	err := s.filesCol.FindOne(ctx, bson.M{"owner": file.Owner, "path": file.Path}).Decode(&existing)
	switch {
	case err == nil:
		file.FileID = existing.FileID
		_, err = s.filesCol.UpdateOne(ctx,
			bson.M{"owner": file.Owner, "path": file.Path},
			bson.M{"$set": bson.M{
				"name":       file.Name,
				"is_dir":     file.IsDir,
				"size":       file.Size,
				"indexed_at": file.IndexedAt,
			}},
		)
		return err
	case errors.Is(err, mongo.ErrNoDocuments):
		id, err := s.nextFileID(ctx)
		if err != nil {
			return err
		}
		file.FileID = id
		_, err = s.filesCol.InsertOne(ctx, file)
		return err
	default:
		return fmt.Errorf("lookup file %s: %w", file.Path, err)
	}
}

// GetFile returns nil when the owner has no such file.
func (s *MongoStore) GetFile(ctx context.Context, owner string, fileID int64) (*models.StoredFile, error) {
	var file models.StoredFile
	err := s.filesCol.FindOne(ctx, bson.M{"owner": owner, "file_id": fileID}).Decode(&file)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &file, nil
}

// ListFiles returns every indexed entry of owner ordered by path.
func (s *MongoStore) ListFiles(ctx context.Context, owner string) ([]*models.StoredFile, error) {
	cursor, err := s.filesCol.Find(ctx, bson.M{"owner": owner}, options.Find().SetSort(bson.M{"path": 1}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var files []*models.StoredFile
	if err := cursor.All(ctx, &files); err != nil {
		return nil, err
	}
	return files, nil
}

// PruneFiles removes entries of owner not seen since the given scan time.
func (s *MongoStore) PruneFiles(ctx context.Context, owner string, before time.Time) (int64, error) {
	res, err := s.filesCol.DeleteMany(ctx, bson.M{
		"owner":      owner,
		"indexed_at": bson.M{"$lt": before},
	})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// Share operations

func (s *MongoStore) InsertShare(ctx context.Context, share *models.Share) error {
	_, err := s.sharesCol.InsertOne(ctx, share)
	return err
}

// GetShare returns nil when no share has the id.
func (s *MongoStore) GetShare(ctx context.Context, id string) (*models.Share, error) {
	return s.findShare(ctx, bson.M{"_id": id})
}

// GetShareByToken returns nil when no share has the token.
func (s *MongoStore) GetShareByToken(ctx context.Context, token string) (*models.Share, error) {
	return s.findShare(ctx, bson.M{"token": token})
}

func (s *MongoStore) findShare(ctx context.Context, filter bson.M) (*models.Share, error) {
	var share models.Share
	if err := s.sharesCol.FindOne(ctx, filter).Decode(&share); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &share, nil
}

func (s *MongoStore) SetSharePassword(ctx context.Context, id string, hash []byte) error {
	_, err := s.sharesCol.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"password_hash": hash}})
	return err
}

// SetShareExpiration clears the expiration when expiresAt is nil.
func (s *MongoStore) SetShareExpiration(ctx context.Context, id string, expiresAt *time.Time) error {
	update := bson.M{"$unset": bson.M{"expires_at": ""}}
	if expiresAt != nil {
		update = bson.M{"$set": bson.M{"expires_at": *expiresAt}}
	}
	_, err := s.sharesCol.UpdateOne(ctx, bson.M{"_id": id}, update)
	return err
}

// Calendar event operations

func (s *MongoStore) SaveCalendarEvent(ctx context.Context, event *models.CalendarEvent) error {
	_, err := s.eventsCol.ReplaceOne(ctx, bson.M{"_id": event.ID}, event, options.Replace().SetUpsert(true))
	return err
}

// GetCalendarEvent returns nil when the user has no such event.
func (s *MongoStore) GetCalendarEvent(ctx context.Context, userID, id string) (*models.CalendarEvent, error) {
	var event models.CalendarEvent
	err := s.eventsCol.FindOne(ctx, bson.M{"_id": id, "user_id": userID}).Decode(&event)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &event, nil
}

// CalendarEventsBetween returns events of userID starting in [from, to), ordered by start.
func (s *MongoStore) CalendarEventsBetween(ctx context.Context, userID string, from, to time.Time) ([]models.CalendarEvent, error) {
	cursor, err := s.eventsCol.Find(ctx,
		bson.M{"user_id": userID, "start": bson.M{"$gte": from, "$lt": to}},
		options.Find().SetSort(bson.M{"start": 1}),
	)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var events []models.CalendarEvent
	if err := cursor.All(ctx, &events); err != nil {
		return nil, err
	}
	return events, nil
}
