package chunkstore

import (
	"errors"

	"github.com/devblac/eventvault/internal/abiregistry"
)

var (
	// ErrMissingDefinition is returned when an event name resolves to no signature hash.
	ErrMissingDefinition = abiregistry.ErrMissingDefinition
	// ErrAmbiguousDefinition is returned when an event name resolves to several signature hashes.
	ErrAmbiguousDefinition = abiregistry.ErrAmbiguousDefinition
	// ErrOverlappingChunks is returned when a block is covered by more than one chunk of an event.
	ErrOverlappingChunks = errors.New("overlapping chunks")
	// ErrMissingBlocks is returned when an event's chunks leave a gap and gaps are not tolerated.
	ErrMissingBlocks = errors.New("missing blocks")
	// ErrAlreadyExists is returned when a chunk path is taken and overwrite was not requested.
	ErrAlreadyExists = errors.New("chunk already exists")
	// ErrDataNotFound is returned when the store holds no chunks for an event or a requested
	// bound lies outside the stored range.
	ErrDataNotFound = errors.New("data not found")
	// ErrInvalidChunk is returned for malformed chunk names, files, or write requests.
	ErrInvalidChunk = errors.New("invalid chunk")
)
