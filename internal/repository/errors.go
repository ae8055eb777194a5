package repository

import (
	"errors"

	"go.mongodb.org/mongo-driver/mongo"
)

var (
	// ErrNotFound is returned when the requested document does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrStateChanged is returned by conditional updates whose precondition
	// no longer holds, e.g. approving a goal that was approved meanwhile.
	ErrStateChanged = errors.New("document state changed")
)

func notFound(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	return err
}
