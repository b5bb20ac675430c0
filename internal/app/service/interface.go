package service

import (
	"context"
	"time"

	"github.com/atinyakov/linkgate/internal/recorder"
	"github.com/atinyakov/linkgate/internal/storage"
)

// Registry is the link store the service reads from and owners write to.
type Registry interface {
	FindBySlug(context.Context, string) (*storage.LinkRecord, error)
	FindByID(context.Context, string) (*storage.LinkRecord, error)
	FindByOwner(context.Context, string) ([]storage.LinkRecord, error)
	Create(context.Context, storage.LinkRecord) (*storage.LinkRecord, error)
	Update(context.Context, storage.LinkRecord) (*storage.LinkRecord, error)
	PingContext(context.Context) error
}

// EventLog lists recorded access events for the stats endpoint.
type EventLog interface {
	ListAccessEvents(ctx context.Context, linkID string, limit int) ([]storage.AccessEvent, error)
}

// Recorder accepts side effects of a successful resolution without blocking.
type Recorder interface {
	Record(recorder.Task) bool
}

// Clock supplies the current time to the gate.
type Clock func() time.Time
