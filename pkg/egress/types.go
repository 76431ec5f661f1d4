package egress

import (
	"time"

	"github.com/stagegate/stagegate/pkg/events"
	"github.com/stagegate/stagegate/pkg/lock"
	"github.com/stagegate/stagegate/pkg/objstore"
	"github.com/stagegate/stagegate/pkg/store"
)

// Config wires the service's collaborators and settings.
type Config struct {
	// Enabled gates every lifecycle operation.
	Enabled bool

	// EgressStoreBucket is the shared container holding all store prefixes.
	EgressStoreBucket string

	// KMSKeyAlias names the encryption key protecting the container.
	KMSKeyAlias string

	Records    store.RecordStore
	Objects    objstore.ObjectStorage
	Keys       objstore.KeyManagement
	Locks      lock.Coordinator
	Reconciler Reconciler
	Snapshots  SnapshotBuilder
	Publisher  events.Publisher
	Accounts   AccountResolver
	Auditor    Auditor
}

// Descriptor is the caller-facing description of a newly reachable store.
type Descriptor struct {
	ID        string `json:"id"`
	Name      string `json:"egressStoreName"`
	Bucket    string `json:"bucket"`
	Prefix    string `json:"prefix"`
	KMSKeyArn string `json:"kmsKeyArn"`
}

// ObjectView is one listed object rendered for display.
type ObjectView struct {
	Key          string    `json:"key"`
	Size         string    `json:"size"`
	LastModified time.Time `json:"lastModified"`
}

// ListObjectsResult is the rendered store listing.
type ListObjectsResult struct {
	Objects                     []ObjectView `json:"objects"`
	IsAbleToSubmitEgressRequest bool         `json:"isAbleToSubmitEgressRequest"`
}

// maxListedObjects caps listing responses regardless of store size.
const maxListedObjects = 100
