package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// NewID mints a document identifier in the 24-hex ObjectID form used by
// users, posts and messages.
func NewID() string {
	return primitive.NewObjectID().Hex()
}

// ValidID reports whether s is a well-formed identifier.
func ValidID(s string) bool {
	return primitive.IsValidObjectID(s)
}
