package sources

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/nonebot/store-test/internal/config"
)

// ErrSourceNotFound is returned when the document a source points at does
// not exist (missing file, HTTP 404, missing path in the repository)
var ErrSourceNotFound = errors.New("source not found")

//go:generate mockgen -destination=mocks/mock_source_handler.go -package=mocks -source=types.go SourceHandler,SourceHandlerFactory

// SourceHandler fetches one JSON document from an external location
type SourceHandler interface {
	// FetchData retrieves the document the source points at
	FetchData(ctx context.Context, source *config.SourceConfig) (*FetchResult, error)

	// Validate validates the source configuration
	Validate(source *config.SourceConfig) error
}

// FetchResult contains the result of a fetch operation
type FetchResult struct {
	// Data is the raw document
	Data []byte

	// Hash is the SHA256 hash of Data
	Hash string

	// Location describes where Data came from
	Location string
}

// NewFetchResult creates a FetchResult, hashing data
func NewFetchResult(data []byte, location string) *FetchResult {
	return &FetchResult{
		Data:     data,
		Hash:     fmt.Sprintf("%x", sha256.Sum256(data)),
		Location: location,
	}
}

// SourceHandlerFactory creates source handlers based on source type
type SourceHandlerFactory interface {
	// CreateHandler creates a source handler for the given source type
	CreateHandler(sourceType string) (SourceHandler, error)
}
