package repository

import (
	"context"
	"log"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"chatcore/internal/domain/entity"
	"chatcore/internal/domain/repository"
	"chatcore/pkg/errors"
)

const callsCollection = "calls"

type firestoreCallRepository struct {
	client *firestore.Client
}

func NewFirestoreCallRepository(client *firestore.Client) repository.CallRepository {
	return &firestoreCallRepository{
		client: client,
	}
}

func (r *firestoreCallRepository) Create(ctx context.Context, call *entity.CallSession) error {
	_, err := r.client.Collection(callsCollection).Doc(call.ID).Create(ctx, call)
	if err != nil {
		return storeError("Call", "Failed to create call", err)
	}
	return nil
}

func (r *firestoreCallRepository) GetByID(ctx context.Context, callID string) (*entity.CallSession, error) {
	doc, err := r.client.Collection(callsCollection).Doc(callID).Get(ctx)
	if err != nil {
		return nil, storeError("Call", "Failed to get call", err)
	}
	return decodeCall(doc)
}

func (r *firestoreCallRepository) Transition(ctx context.Context, callID string, from []entity.CallStatus, next entity.CallStatus, endedAt *time.Time) (bool, error) {
	ref := r.client.Collection(callsCollection).Doc(callID)
	applied := false

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		applied = false
		doc, err := tx.Get(ref)
		if err != nil {
			return err
		}
		call, err := decodeCall(doc)
		if err != nil {
			return err
		}
		if !statusIn(call.Status, from) || !call.Status.CanTransition(next) {
			return nil
		}

		updates := []firestore.Update{{Path: "status", Value: next}}
		if endedAt != nil {
			updates = append(updates, firestore.Update{Path: "endedAt", Value: *endedAt})
		}
		applied = true
		return tx.Update(ref, updates)
	})
	if err != nil {
		return false, storeError("Call", "Failed to update call status", err)
	}
	return applied, nil
}

func (r *firestoreCallRepository) WatchAdded(ctx context.Context, userID string) (repository.Feed[[]*entity.CallSession], error) {
	it := r.client.Collection(callsCollection).
		Where("participants", "array-contains", userID).
		Snapshots(ctx)
	return &addedCallFeed{it: it}, nil
}

func (r *firestoreCallRepository) WatchCall(ctx context.Context, callID string) (repository.Feed[*entity.CallSession], error) {
	return &callFeed{it: r.client.Collection(callsCollection).Doc(callID).Snapshots(ctx)}, nil
}

func statusIn(s entity.CallStatus, set []entity.CallStatus) bool {
	for _, candidate := range set {
		if s == candidate {
			return true
		}
	}
	return false
}

func decodeCall(doc *firestore.DocumentSnapshot) (*entity.CallSession, error) {
	var call entity.CallSession
	if err := doc.DataTo(&call); err != nil {
		return nil, errors.Internal("Failed to parse call data", err)
	}
	call.ID = doc.Ref.ID
	return &call, nil
}

type addedCallFeed struct {
	it *firestore.QuerySnapshotIterator
}

func (f *addedCallFeed) Next() ([]*entity.CallSession, error) {
	snap, err := f.it.Next()
	if err != nil {
		return nil, feedError(err)
	}

	var calls []*entity.CallSession
	for _, change := range snap.Changes {
		if change.Kind != firestore.DocumentAdded {
			continue
		}
		call, err := decodeCall(change.Doc)
		if err != nil {
			log.Printf("WatchAdded Warning: skipping malformed call %s: %v", change.Doc.Ref.ID, err)
			continue
		}
		calls = append(calls, call)
	}
	return calls, nil
}

func (f *addedCallFeed) Stop() {
	f.it.Stop()
}

type callFeed struct {
	it *firestore.DocumentSnapshotIterator
}

func (f *callFeed) Next() (*entity.CallSession, error) {
	doc, err := f.it.Next()
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, feedError(err)
	}
	if !doc.Exists() {
		return nil, nil
	}
	return decodeCall(doc)
}

func (f *callFeed) Stop() {
	f.it.Stop()
}
