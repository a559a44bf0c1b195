// Package screen captures what the user is looking at: the frontmost app,
// its accessibility tree and a screenshot.
package screen

import (
	"context"
	"sync"

	"github.com/fentz26/orange/internal/axtree"
	"github.com/fentz26/orange/internal/logging"
	"github.com/fentz26/orange/internal/models"
)

// Provider captures the current screen context. Capture never fails;
// parts that cannot be read are left empty.
type Provider interface {
	Capture(ctx context.Context) models.ScreenContext
}

// AppDetector reads metadata about the frontmost application.
type AppDetector interface {
	CurrentApp(ctx context.Context) (models.AppMetadata, error)
}

// Screenshotter returns the main display as base64 JPEG.
type Screenshotter interface {
	CaptureBase64(ctx context.Context) (string, error)
}

// TreeReader snapshots accessibility trees.
type TreeReader interface {
	AutomationAllowed(ctx context.Context) bool
	Snapshot(ctx context.Context, lim axtree.Limits) (*axtree.Tree, error)
}

const permissionMissing = "Accessibility permission not granted"

// Assembler builds ScreenContext from its three sources in parallel.
type Assembler struct {
	apps   AppDetector
	shots  Screenshotter
	tree   TreeReader
	limits axtree.Limits
}

// NewAssembler creates an Assembler. Any source may be nil.
func NewAssembler(apps AppDetector, shots Screenshotter, tree TreeReader, limits axtree.Limits) *Assembler {
	if limits.MaxNodes <= 0 {
		limits = axtree.SummaryLimits
	}
	return &Assembler{apps: apps, shots: shots, tree: tree, limits: limits}
}

// Capture implements Provider.
func (a *Assembler) Capture(ctx context.Context) models.ScreenContext {
	var (
		sc models.ScreenContext
		wg sync.WaitGroup
	)

	if a.apps != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app, err := a.apps.CurrentApp(ctx)
			if err != nil {
				logging.Debug("app detection failed", "error", err)
			}
			sc.App = app
		}()
	}

	if a.shots != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			shot, err := a.shots.CaptureBase64(ctx)
			if err != nil {
				logging.Debug("screenshot failed", "error", err)
				return
			}
			sc.ScreenshotBase64 = shot
		}()
	}

	if a.tree != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sc.AXTreeSummary = a.summary(ctx)
		}()
	}

	wg.Wait()
	return sc
}

func (a *Assembler) summary(ctx context.Context) string {
	if !a.tree.AutomationAllowed(ctx) {
		return permissionMissing
	}
	t, err := a.tree.Snapshot(ctx, a.limits)
	if err != nil {
		logging.Debug("accessibility summary failed", "error", err)
		return "Unable to read focused application"
	}
	return axtree.Summarize(t.Root, a.limits)
}
