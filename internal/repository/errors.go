package repository

import (
	"errors"
	"fmt"

	"github.com/chingu-voyage4/Bears-Team-0/internal/database"
	"github.com/chingu-voyage4/Bears-Team-0/internal/models"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

var (
	ErrConnection        = database.ErrConnection
	ErrValidation        = models.ErrValidation
	ErrForbiddenField    = models.ErrForbiddenField
	ErrInvalidIdentifier = errors.New("invalid identifier")
	ErrNotFound          = errors.New("not found")
	ErrDuplicate         = errors.New("already exists")
)

func parseID(id string) (bson.ObjectID, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return bson.NilObjectID, fmt.Errorf("%w: %q", ErrInvalidIdentifier, id)
	}
	return oid, nil
}

func notFound(kind, id string) error {
	return fmt.Errorf("%w: %s %s", ErrNotFound, kind, id)
}

// storeError classifies a driver failure so callers can test it with
// errors.Is without knowing about the driver.
func storeError(action string, err error) error {
	switch {
	case errors.Is(err, ErrConnection):
		return err
	case mongo.IsNetworkError(err), mongo.IsTimeout(err), errors.Is(err, mongo.ErrClientDisconnected):
		return fmt.Errorf("%s: %w: %w", action, ErrConnection, err)
	case mongo.IsDuplicateKeyError(err), errors.Is(err, database.ErrDuplicateKey):
		return fmt.Errorf("%s: %w: %w", action, ErrDuplicate, err)
	}
	return fmt.Errorf("%s: %w", action, err)
}
