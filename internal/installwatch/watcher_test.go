package installwatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/phantomsec/threatwatch/internal/alerts"
	"github.com/phantomsec/threatwatch/internal/config"
	"github.com/phantomsec/threatwatch/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNavigator struct {
	mu       sync.Mutex
	scans    []string
	prompted int
}

func (f *fakeNavigator) RequestScan(packageName string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scans = append(f.scans, packageName)
}

func (f *fakeNavigator) PromptNotificationPermission() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompted++
}

func watchConfig() *config.Config {
	return &config.Config{
		HostPackage:  "com.phantomsec.phantom",
		PollInterval: 3 * time.Second,
	}
}

func alwaysGranted() bool { return true }

func TestHandleEventFlagsNewInstall(t *testing.T) {
	navigator := &fakeNavigator{}
	sink := alerts.NewDispatcher()
	watcher := New(watchConfig(), NewBridgeLister(), navigator, sink, alwaysGranted)

	flagged := watcher.HandleEvent(models.PackageEvent{PackageName: "com.sketchy.app"})

	assert.True(t, flagged)
	assert.Equal(t, []string{"com.sketchy.app"}, navigator.scans)

	pending := sink.Pending()
	require.Len(t, pending, 1)
	assert.Contains(t, pending, "install:com.sketchy.app")
}

func TestHandleEventRejections(t *testing.T) {
	testCases := []struct {
		name  string
		event models.PackageEvent
	}{
		{name: "empty package name", event: models.PackageEvent{}},
		{name: "self install", event: models.PackageEvent{PackageName: "com.phantomsec.phantom"}},
		{name: "replace or update", event: models.PackageEvent{PackageName: "com.sketchy.app", Replacing: true}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			navigator := &fakeNavigator{}
			sink := alerts.NewDispatcher()
			watcher := New(watchConfig(), NewBridgeLister(), navigator, sink, alwaysGranted)

			assert.False(t, watcher.HandleEvent(tc.event))
			assert.Empty(t, navigator.scans)
			assert.Empty(t, sink.Pending())
		})
	}
}

func TestReconcilePrimesWithoutFlagging(t *testing.T) {
	lister := NewBridgeLister()
	lister.Update([]string{"com.existing.one", "com.existing.two"})

	navigator := &fakeNavigator{}
	sink := alerts.NewDispatcher()
	watcher := New(watchConfig(), lister, navigator, sink, alwaysGranted)

	require.NoError(t, watcher.Reconcile(context.Background()))

	assert.Empty(t, navigator.scans, "the priming run must not flag pre-existing packages")
	assert.Empty(t, sink.Pending())
}

func TestReconcileFlagsFreshPackages(t *testing.T) {
	lister := NewBridgeLister()
	lister.Update([]string{"com.existing.one"})

	navigator := &fakeNavigator{}
	sink := alerts.NewDispatcher()
	watcher := New(watchConfig(), lister, navigator, sink, alwaysGranted)

	require.NoError(t, watcher.Reconcile(context.Background()))

	lister.Update([]string{"com.existing.one", "com.fresh.app", "com.phantomsec.phantom"})
	require.NoError(t, watcher.Reconcile(context.Background()))

	assert.Equal(t, []string{"com.fresh.app"}, navigator.scans, "only the fresh non-host package should be flagged")

	// A third run with an unchanged snapshot flags nothing further.
	require.NoError(t, watcher.Reconcile(context.Background()))
	assert.Len(t, navigator.scans, 1)
}

func TestBroadcastAndPollConverge(t *testing.T) {
	lister := NewBridgeLister()
	lister.Update([]string{"com.existing.one"})

	navigator := &fakeNavigator{}
	sink := alerts.NewDispatcher()
	watcher := New(watchConfig(), lister, navigator, sink, alwaysGranted)

	require.NoError(t, watcher.Reconcile(context.Background()))

	// The broadcast arrives first, then the poll sees the same install.
	assert.True(t, watcher.HandleEvent(models.PackageEvent{PackageName: "com.fresh.app"}))

	lister.Update([]string{"com.existing.one", "com.fresh.app"})
	require.NoError(t, watcher.Reconcile(context.Background()))

	// The broadcast already recorded the package, so the poll does not flag
	// it again and the single pending alert is keyed by package name.
	assert.Equal(t, []string{"com.fresh.app"}, navigator.scans)
	assert.Len(t, sink.Pending(), 1)
}

func TestReconcileErrorsWithoutSnapshot(t *testing.T) {
	watcher := New(watchConfig(), NewBridgeLister(), &fakeNavigator{}, alerts.NewDispatcher(), alwaysGranted)

	err := watcher.Reconcile(context.Background())
	assert.ErrorIs(t, err, ErrNoSnapshot)
}

func TestMissingPermissionPromptsOnce(t *testing.T) {
	navigator := &fakeNavigator{}
	sink := alerts.NewDispatcher()
	watcher := New(watchConfig(), NewBridgeLister(), navigator, sink, func() bool { return false })

	assert.False(t, watcher.HandleEvent(models.PackageEvent{PackageName: "com.first.app"}))
	assert.False(t, watcher.HandleEvent(models.PackageEvent{PackageName: "com.second.app"}))

	assert.Equal(t, 1, navigator.prompted, "the permission prompt fires once, not per detection")
	assert.Empty(t, sink.Pending())
	assert.Empty(t, navigator.scans)
}

func TestBridgeListerSnapshotIsolation(t *testing.T) {
	lister := NewBridgeLister()

	_, err := lister.InstalledPackages(context.Background())
	assert.True(t, errors.Is(err, ErrNoSnapshot))

	lister.Update([]string{"com.a", "com.b", ""})

	packages, err := lister.InstalledPackages(context.Background())
	require.NoError(t, err)
	assert.Len(t, packages, 2, "blank names are dropped")

	// Mutating the returned copy must not affect the lister.
	delete(packages, "com.a")
	again, err := lister.InstalledPackages(context.Background())
	require.NoError(t, err)
	assert.Len(t, again, 2)
}
