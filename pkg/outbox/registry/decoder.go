package registry

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/angelmondragon/shopdesk-backend/pkg/enums"
)

// ErrNoDecoder is returned by Decode for an event type/version pair nobody registered.
var ErrNoDecoder = errors.New("no decoder registered")

type decodeFunc func(json.RawMessage) (any, error)

type decoderKey struct {
	eventType enums.OutboxEventType
	version   int
}

// DecoderRegistry maps envelope payloads to consumer-specific values. It is
// filled once at construction and read concurrently afterwards, so it carries
// no lock.
type DecoderRegistry struct {
	decoders map[decoderKey]decodeFunc
}

func NewDecoderRegistry() *DecoderRegistry {
	return &DecoderRegistry{decoders: map[decoderKey]decodeFunc{}}
}

// Register unmarshals payloads of eventType@version into T and hands them to
// project. A later registration for the same pair replaces the earlier one.
func Register[T any](r *DecoderRegistry, eventType enums.OutboxEventType, version int, project func(T) (any, error)) {
	r.decoders[decoderKey{eventType, version}] = func(raw json.RawMessage) (any, error) {
		var payload T
		if err := json.Unmarshal(raw, &payload); err != nil {
			return nil, fmt.Errorf("decode %s@v%d: %w", eventType, version, err)
		}
		return project(payload)
	}
}

// Decode runs the decoder registered for eventType@version.
func (r *DecoderRegistry) Decode(eventType enums.OutboxEventType, version int, data json.RawMessage) (any, error) {
	fn, ok := r.decoders[decoderKey{eventType, version}]
	if !ok {
		return nil, fmt.Errorf("%w: %s@v%d", ErrNoDecoder, eventType, version)
	}
	return fn(data)
}
