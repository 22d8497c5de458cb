package mongostore

import (
	"errors"

	"go.mongodb.org/mongo-driver/v2/mongo"
)

func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

func asCommandError(err error, target *mongo.CommandError) bool {
	return errors.As(err, target)
}
