package main

import (
	"strings"

	"github.com/gofrs/uuid"
)

var _ UIDHandler = (*IDsHandler)(nil) // ensure IDsHandler implements UIDHandler.

// Prefixes of generated identifiers.
const (
	BookIDPrefix         string = "b"
	ProductIDPrefix      string = "p"
	CategoryIDPrefix     string = "c"
	ReviewIDPrefix       string = "rv"
	NotificationIDPrefix string = "n"
	EventIDPrefix        string = "e"
	RequestIDPrefix      string = "r"
)

// UIDHandler is an interface for generating and checking uids.
type UIDHandler interface {
	Generate(prefix string) string
	IsValid(id, prefix string) bool
}

// IDsHandler builds ids as `<prefix>:<uuid v4>`.
type IDsHandler struct{}

func NewIDsHandler() *IDsHandler {
	return &IDsHandler{}
}

// Generate provides a random unique identifier. NewV4 only fails when the
// system random source is broken, which is not recoverable.
func (idh *IDsHandler) Generate(prefix string) string {
	return prefix + ":" + uuid.Must(uuid.NewV4()).String()
}

// IsValid reports whether id carries the prefix followed by a version 4 uuid.
func (idh *IDsHandler) IsValid(id, prefix string) bool {
	raw, found := strings.CutPrefix(id, prefix+":")
	if !found {
		return false
	}
	u, err := uuid.FromString(raw)
	return err == nil && u.Version() == uuid.V4
}
