package repository

import (
	"context"
	stderrors "errors"

	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domainrepo "chatcore/internal/domain/repository"
	"chatcore/pkg/errors"
)

// storeError maps a Firestore error onto the application taxonomy.
func storeError(resource, message string, err error) error {
	switch status.Code(err) {
	case codes.NotFound:
		return errors.NotFound(resource, err)
	case codes.AlreadyExists:
		return errors.Conflict(resource + " already exists")
	}
	return errors.StoreUnavailable(message, err)
}

// feedError ends a feed quietly on cancellation and reports anything else as
// a broken store connection.
func feedError(err error) error {
	if err == iterator.Done || stderrors.Is(err, context.Canceled) || status.Code(err) == codes.Canceled {
		return domainrepo.ErrFeedStopped
	}
	return errors.StoreUnavailable("Live subscription interrupted", err)
}
