// Package platform defines the narrow operating-system interfaces the daemon
// builds on: input-idle sampling, window and display enumeration, overlay
// surfaces, global hotkeys and display power control. Platform backends
// implement these; on systems without a supported display server the daemon
// runs with the Unsupported fallback and degrades instead of failing.
package platform

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrUnsupported indicates no supported display server is available.
var ErrUnsupported = errors.New("platform not supported")

// Rect is a rectangle in root (screen) coordinates.
type Rect struct {
	X      int
	Y      int
	Width  int
	Height int
}

// Contains reports whether the point (x, y) lies inside the rectangle.
func (r Rect) Contains(x, y int) bool {
	return x >= r.X && x < r.X+r.Width && y >= r.Y && y < r.Y+r.Height
}

// Center returns the rectangle's center point.
func (r Rect) Center() (int, int) {
	return r.X + r.Width/2, r.Y + r.Height/2
}

// Display is one connected monitor.
type Display struct {
	Index  int
	Bounds Rect
}

// Window describes one top-level window, as reported by the display server.
type Window struct {
	ID         uint32
	PID        int32
	Title      string
	Class      string
	Bounds     Rect
	Visible    bool
	Minimized  bool
	ToolWindow bool
}

// ActivitySampler reports how long ago the last user input (any pointer or
// key event) was seen, system-wide.
type ActivitySampler interface {
	IdleTime() (time.Duration, error)
}

// WindowLister enumerates all current top-level windows.
type WindowLister interface {
	Windows() ([]Window, error)
}

// DisplayLister enumerates the currently connected displays.
type DisplayLister interface {
	Displays() ([]Display, error)
}

// Surface is one full-screen overlay surface on a single display.
type Surface interface {
	// Draw replaces the surface's content with the given text lines.
	Draw(lines []string) error
	Close() error
}

// SurfaceFactory creates overlay surfaces. onInput is called, possibly from
// the backend's event loop, whenever the surface sees any key, button or
// pointer-motion event. It must not block.
type SurfaceFactory interface {
	CreateSurface(display Display, onInput func()) (Surface, error)
}

// Hotkey is a system-wide key binding.
type Hotkey struct {
	Key  rune
	Ctrl bool
	Alt  bool
}

func (h Hotkey) String() string {
	var s string
	if h.Ctrl {
		s += "ctrl+"
	}
	if h.Alt {
		s += "alt+"
	}
	return s + string(h.Key)
}

// HotkeyBinder registers a system-wide hotkey. fn is called, possibly from
// the backend's event loop, every time the hotkey is pressed. It must not
// block.
type HotkeyBinder interface {
	BindHotkey(hotkey Hotkey, fn func()) error
}

// PowerController turns connected displays off.
type PowerController interface {
	DisplaysOff() error
}

// Platform bundles all capabilities a backend provides. Run pumps the
// backend's event loop until ctx is canceled; it must be running for surface
// input and hotkey callbacks to fire.
type Platform interface {
	ActivitySampler
	WindowLister
	DisplayLister
	SurfaceFactory
	HotkeyBinder
	PowerController
	Run(ctx context.Context) error
}

var _ Platform = Unsupported{}

// Unsupported is the fallback backend for systems without a supported
// display server. All capabilities fail with ErrUnsupported, letting the
// daemon run fully degraded: activity tracking reports no input, inspection
// reports false and activation aborts.
type Unsupported struct {
	Reason error
}

func (u Unsupported) err(op string) error {
	if u.Reason != nil {
		return fmt.Errorf("%s: %w: %w", op, ErrUnsupported, u.Reason)
	}
	return fmt.Errorf("%s: %w", op, ErrUnsupported)
}

func (u Unsupported) IdleTime() (time.Duration, error) { return 0, u.err("idle time") }
func (u Unsupported) Windows() ([]Window, error)       { return nil, u.err("windows") }
func (u Unsupported) Displays() ([]Display, error)     { return nil, u.err("displays") }

func (u Unsupported) CreateSurface(_ Display, _ func()) (Surface, error) {
	return nil, u.err("create surface")
}

func (u Unsupported) BindHotkey(hotkey Hotkey, _ func()) error {
	return u.err("bind " + hotkey.String())
}

func (u Unsupported) DisplaysOff() error { return u.err("displays off") }

// Run blocks until ctx is canceled. The fallback has no events to pump.
func (u Unsupported) Run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}
