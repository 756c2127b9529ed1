package routes

import (
	"context"
	"errors"

	apperrors "github.com/taiso/routes-service/pkg/errors"
	"github.com/taiso/routes-service/pkg/eventbus"
	"github.com/taiso/routes-service/pkg/logger"
	"github.com/taiso/routes-service/pkg/storage"
	"go.uber.org/zap"
)

// ArchiveCleanupConsumer is the durable consumer name of the archive cleaner
const ArchiveCleanupConsumer = "routes-archive-cleanup"

// ArchiveCleaner removes archived GPX originals once their route is deleted
type ArchiveCleaner struct {
	archive storage.Storage
}

// NewArchiveCleaner creates a cleaner for the given archive
func NewArchiveCleaner(archive storage.Storage) *ArchiveCleaner {
	return &ArchiveCleaner{archive: archive}
}

// Handle processes a routes.deleted event. An object that is already gone
// counts as cleaned up.
func (c *ArchiveCleaner) Handle(ctx context.Context, event *eventbus.Event) error {
	var data eventbus.RouteDeletedData
	if err := event.Decode(&data); err != nil {
		return err
	}
	if data.ArchiveKey == "" {
		return nil
	}

	if err := c.archive.Delete(ctx, data.ArchiveKey); err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
		apperrors.CaptureErrorWithContext(ctx, err, map[string]interface{}{
			"route_id": data.RouteID.String(),
			"key":      data.ArchiveKey,
		})
		return err
	}

	logger.InfoContext(ctx, "archived GPX removed",
		zap.String("route_id", data.RouteID.String()),
		zap.String("key", data.ArchiveKey),
	)
	return nil
}

// Start subscribes the cleaner to route deletions
func (c *ArchiveCleaner) Start(ctx context.Context, bus *eventbus.Bus) error {
	return bus.Subscribe(ctx, eventbus.SubjectRouteDeleted, ArchiveCleanupConsumer, c.Handle)
}
