package ephem

import (
	"errors"

	"github.com/signalsfoundry/celestial-catalog/coverage"
)

var (
	// ErrUnknownIdentifier indicates the engine cannot validate an id or
	// resolve a name.
	ErrUnknownIdentifier = errors.New("unknown identifier")
	// ErrNoDataAtEpoch indicates a state query outside loaded coverage.
	ErrNoDataAtEpoch = errors.New("no data at epoch")
	// ErrNoFrameAvailable indicates a body has no associated body-fixed frame.
	ErrNoFrameAvailable = errors.New("no such frame available")
	// ErrParameterUnavailable indicates a missing body constant.
	ErrParameterUnavailable = errors.New("parameter unavailable")
	// ErrNotFound indicates a registry lookup miss.
	ErrNotFound = errors.New("object not found")
	// ErrIndexOutOfRange indicates positional registry access past its end.
	ErrIndexOutOfRange = errors.New("index out of range")
	// ErrDataIntegrity indicates malformed engine or coverage data.
	ErrDataIntegrity = coverage.ErrDataIntegrity
)
