package automation

import (
	"context"

	"automator/internal/models"
)

// StateProvider returns the last known snapshot of the host device
type StateProvider interface {
	Snapshot(ctx context.Context) (models.DeviceState, error)
}

// LocationProvider requests a fresh location fix from the host
type LocationProvider interface {
	FreshFix(ctx context.Context) (models.Location, error)
}

// Commander delivers a command to the host device
type Commander interface {
	Send(ctx context.Context, cmd models.Command) error
}

// PackageCatalog answers whether an app package is installed on the host
type PackageCatalog interface {
	IsInstalled(ctx context.Context, pkg string) (bool, error)
}

// BlockList is the shared deny-list consulted by the foreground-app observer
type BlockList interface {
	Add(ctx context.Context, pkg string) error
	Remove(ctx context.Context, pkg string) error
	Contains(pkg string) bool
}

// ServiceStatus reports whether a host listener service is connected
type ServiceStatus interface {
	Connected(service string) bool
}
