package eventstore

import (
	kerrors "git.home.luguber.info/inful/kitbuilder/internal/errors"
)

// Sentinel errors for event store failures. Returned errors match them with
// errors.Is, since classified errors compare by category and message.
var (
	ErrDatabaseOpenFailed     = kerrors.EventStoreError("could not open event store database").Build()
	ErrInitializeSchemaFailed = kerrors.EventStoreError("failed to initialize event store schema").Build()
	ErrEventAppendFailed      = kerrors.EventStoreError("failed to append event to store").Build()
	ErrEventQueryFailed       = kerrors.EventStoreError("failed to query events from store").Build()
	ErrMarshalPayloadFailed   = kerrors.EventStoreError("failed to marshal event payload").Build()
)

func storeError(sentinel *kerrors.ClassifiedError, err error) error {
	return kerrors.EventStoreError(sentinel.Message()).WithCause(err).Build()
}
