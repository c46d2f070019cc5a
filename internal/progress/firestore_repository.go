package progress

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/banglabot/quest-service/internal/badge"
)

const (
	progressCollection = "quest_progress"
	attemptsCollection = "attempts"
)

type firestoreRepository struct {
	client *firestore.Client
}

// progressDocument is the persisted shape of quest_progress/{userID}.
type progressDocument struct {
	UserID    string                    `firestore:"user_id"`
	Regions   map[string]RegionProgress `firestore:"regions"`
	Badges    []badge.Badge             `firestore:"badges"`
	UpdatedAt time.Time                 `firestore:"updated_at"`
}

// NewFirestoreRepository creates a new Firestore repository
func NewFirestoreRepository(client *firestore.Client) Repository {
	return &firestoreRepository{client: client}
}

func (r *firestoreRepository) doc(userID string) *firestore.DocumentRef {
	return r.client.Collection(progressCollection).Doc(userID)
}

func (r *firestoreRepository) Load(ctx context.Context, userID string) (Record, error) {
	snap, err := r.doc(userID).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return emptyRecord(), nil
	}
	if err != nil {
		return Record{}, err
	}
	return decodeRecord(snap)
}

func (r *firestoreRepository) Apply(ctx context.Context, userID string, attempt Attempt, mutate func(*Record) error) (Record, error) {
	docRef := r.doc(userID)
	attemptRef := docRef.Collection(attemptsCollection).Doc(attempt.ID)

	var result Record
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		working := emptyRecord()
		snap, err := tx.Get(docRef)
		switch {
		case status.Code(err) == codes.NotFound:
		case err != nil:
			return err
		default:
			if working, err = decodeRecord(snap); err != nil {
				return err
			}
		}

		if err := mutate(&working); err != nil {
			return err
		}

		if err := tx.Set(docRef, progressDocument{
			UserID:    userID,
			Regions:   working.Progress,
			Badges:    working.Badges,
			UpdatedAt: attempt.RecordedAt,
		}); err != nil {
			return err
		}
		if err := tx.Create(attemptRef, attempt); err != nil {
			return err
		}

		result = working
		return nil
	})
	if err != nil {
		return Record{}, err
	}
	return result, nil
}

func (r *firestoreRepository) Attempts(ctx context.Context, userID string, limit int) ([]Attempt, error) {
	iter := r.doc(userID).Collection(attemptsCollection).
		OrderBy("recorded_at", firestore.Desc).
		Limit(limit).
		Documents(ctx)
	defer iter.Stop()

	var attempts []Attempt
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		var a Attempt
		if err := doc.DataTo(&a); err != nil {
			return nil, fmt.Errorf("unmarshal attempt: %w", err)
		}
		a.ID = doc.Ref.ID
		attempts = append(attempts, a)
	}
	return attempts, nil
}

func decodeRecord(snap *firestore.DocumentSnapshot) (Record, error) {
	var doc progressDocument
	if err := snap.DataTo(&doc); err != nil {
		return Record{}, fmt.Errorf("unmarshal progress: %w", err)
	}
	rec := Record{Progress: Map(doc.Regions), Badges: doc.Badges}
	if rec.Progress == nil {
		rec.Progress = Map{}
	}
	return rec, nil
}
