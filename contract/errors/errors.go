package errors

// Error codes for the bus contracts. Keep stable; used across transports,
// the registry, and the dispatcher.
const (
	ErrCodeUnroutableCommand       = "bus.unroutable_command"
	ErrCodeAmbiguousCommandBinding = "bus.ambiguous_command_binding"
	ErrCodeDuplicateCommandBinding = "bus.duplicate_command_binding"
	ErrCodeRegistrySealed          = "bus.registry_sealed"
	ErrCodeHandlerTypeMismatch     = "bus.handler_type_mismatch"
	ErrCodePublishUnavailable      = "bus.publish_unavailable"
	ErrCodeEncodingFailed          = "bus.encoding_failed"
	ErrCodeDecodingFailed          = "bus.decoding_failed"
)

// Code returns an error value that carries only a code string.
// It implements error by returning the code string in Error().
func Code(code string) error { return codedError(code) }

type codedError string

func (e codedError) Error() string { return string(e) }

var (
	// ErrUnroutableCommand is returned when a command resolves to no handler.
	ErrUnroutableCommand = Code(ErrCodeUnroutableCommand)
	// ErrAmbiguousCommandBinding is returned when more than one handler is
	// found for a command type. Registration prevents this; dispatch still
	// checks it defensively.
	ErrAmbiguousCommandBinding = Code(ErrCodeAmbiguousCommandBinding)
	// ErrDuplicateCommandBinding is returned when binding a second handler
	// for a command type that already has one.
	ErrDuplicateCommandBinding = Code(ErrCodeDuplicateCommandBinding)
	// ErrRegistrySealed is returned when binding after the registry was
	// sealed at the end of startup wiring.
	ErrRegistrySealed = Code(ErrCodeRegistrySealed)
	// ErrHandlerTypeMismatch is returned when a bound handler receives a
	// value of an unexpected concrete type.
	ErrHandlerTypeMismatch = Code(ErrCodeHandlerTypeMismatch)
	// ErrPublishUnavailable is returned when the broker rejected a publish
	// or could not be reached.
	ErrPublishUnavailable = Code(ErrCodePublishUnavailable)
	// ErrEncodingFailed is returned when an event cannot be serialized.
	ErrEncodingFailed = Code(ErrCodeEncodingFailed)
	// ErrDecodingFailed is returned when a delivered payload cannot be
	// decoded into the expected event type.
	ErrDecodingFailed = Code(ErrCodeDecodingFailed)
)
