// Package installwatch detects newly installed non-system packages through
// two redundant channels: the platform's package-installation broadcast and a
// periodic reconciliation poll. Broadcast delivery can be missed or delayed
// by the platform, so the poll acts as a backup rather than redundant waste.
// Both channels converge on one idempotent flagging step keyed by package
// identifier.
package installwatch

import (
	"context"
	"fmt"
	"sync"

	"github.com/phantomsec/threatwatch/internal/alerts"
	"github.com/phantomsec/threatwatch/internal/config"
	"github.com/phantomsec/threatwatch/internal/models"
	"github.com/sirupsen/logrus"
)

// PackageLister supplies the current set of installed non-system packages.
type PackageLister interface {
	InstalledPackages(ctx context.Context) (map[string]struct{}, error)
}

// Navigator is the externally-owned scan screen collaborator. The watcher
// only flags candidates; it never performs the scan itself.
type Navigator interface {
	RequestScan(packageName string)
	PromptNotificationPermission()
}

// AlertSink posts pending alerts.
type AlertSink interface {
	Post(alert *models.Alert) error
}

// PermissionChecker reports whether the platform notification permission is
// currently held.
type PermissionChecker func() bool

// Watcher is the install observer.
type Watcher struct {
	cfg       *config.Config
	lister    PackageLister
	navigator Navigator
	sink      AlertSink
	canNotify PermissionChecker

	events chan models.PackageEvent
	wg     sync.WaitGroup

	mu       sync.Mutex
	snapshot map[string]struct{}
	primed   bool
	prompted bool
}

// New creates an install watcher.
func New(cfg *config.Config, lister PackageLister, navigator Navigator, sink AlertSink, canNotify PermissionChecker) *Watcher {
	return &Watcher{
		cfg:       cfg,
		lister:    lister,
		navigator: navigator,
		sink:      sink,
		canNotify: canNotify,
		events:    make(chan models.PackageEvent, 32),
	}
}

// Events is the broadcast channel fed by the platform bridge.
func (w *Watcher) Events() chan<- models.PackageEvent {
	return w.events
}

// Start consumes broadcast events until the context is cancelled.
func (w *Watcher) Start(ctx context.Context) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case event := <-w.events:
				w.HandleEvent(event)
			}
		}
	}()
}

// Shutdown waits for the event loop to drain.
func (w *Watcher) Shutdown() {
	w.wg.Wait()
}

// HandleEvent processes one broadcast-channel detection. Self-installs and
// replace/update events do not qualify; only genuinely new installs do.
// Returns true when the package was flagged.
func (w *Watcher) HandleEvent(event models.PackageEvent) bool {
	if event.PackageName == "" {
		return false
	}
	if event.PackageName == w.cfg.HostPackage {
		logrus.Debugf("Ignoring self install event for %s", event.PackageName)
		return false
	}
	if event.Replacing {
		logrus.Debugf("Ignoring replace/update event for %s", event.PackageName)
		return false
	}

	// Record the package so the next poll tick doesn't treat it as new again.
	w.mu.Lock()
	if w.snapshot == nil {
		w.snapshot = make(map[string]struct{})
	}
	w.snapshot[event.PackageName] = struct{}{}
	w.mu.Unlock()

	return w.flag(event.PackageName, "broadcast")
}

// Reconcile is the polling channel: it computes the current installed-package
// snapshot and flags anything present now but absent before. The first
// successful run primes the baseline without flagging.
func (w *Watcher) Reconcile(ctx context.Context) error {
	current, err := w.lister.InstalledPackages(ctx)
	if err != nil {
		return fmt.Errorf("failed to list installed packages: %w", err)
	}

	w.mu.Lock()
	previous := w.snapshot
	next := make(map[string]struct{}, len(current))
	for pkg := range current {
		next[pkg] = struct{}{}
	}
	w.snapshot = next

	if !w.primed {
		w.primed = true
		w.mu.Unlock()
		logrus.Debugf("Package snapshot primed with %d packages", len(next))
		return nil
	}

	var fresh []string
	for pkg := range current {
		if _, known := previous[pkg]; !known && pkg != w.cfg.HostPackage {
			fresh = append(fresh, pkg)
		}
	}
	w.mu.Unlock()

	for _, pkg := range fresh {
		w.flag(pkg, "poll")
	}
	return nil
}

// flag is the converged alerting step for both channels. The package
// identifier is the dispatch key, so a second detection of the same install
// replaces the pending alert rather than duplicating it.
func (w *Watcher) flag(packageName, channel string) bool {
	if w.canNotify != nil && !w.canNotify() {
		w.mu.Lock()
		prompted := w.prompted
		w.prompted = true
		w.mu.Unlock()
		if !prompted {
			logrus.Warn("Notification permission missing, prompting user once")
			w.navigator.PromptNotificationPermission()
		}
		return false
	}

	if err := w.sink.Post(alerts.BuildInstallAlert(packageName)); err != nil {
		logrus.Errorf("Failed to post install alert for %s: %v", packageName, err)
	}
	w.navigator.RequestScan(packageName)

	logrus.Infof("New app install flagged (package=%s, channel=%s)", packageName, channel)
	return true
}
