// Package inspector answers the two foreground questions the poll loop asks:
// is a user-facing window open (the user is working, even without recent
// input), and is a video player or browser showing fullscreen content.
package inspector

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/clambin/go-common/set"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/restmode/restmode/internal/notifier"
	"github.com/restmode/restmode/internal/platform"
)

// Fullscreen tolerance: how far window bounds may fall short of the display
// and still count as covering it. Height gets extra slack for a taskbar
// strip.
const (
	widthTolerance  = 10
	heightTolerance = 40
)

// videoPlayers are the executable names (lower case, no extension) whose
// fullscreen windows suppress activation.
var videoPlayers = set.New(
	"vlc", "potplayer", "mpc-hc", "mpc-be", "wmplayer",
	"chrome", "msedge", "firefox", "opera", "brave", "iexplore",
	"moviesandtv", "netflix", "disneyplus",
)

// Inspector enumerates top-level windows on demand. Enumeration failures
// degrade both checks to false: the poll loop never sees an error, it just
// gets a conservative answer.
type Inspector struct {
	windows  platform.WindowLister
	displays platform.DisplayLister
	players  set.Set[string]
	selfPID  int32
	procName func(pid int32) (string, error)
	notifier notifier.Notifier
	logger   *slog.Logger
	notified atomic.Bool
}

func New(windows platform.WindowLister, displays platform.DisplayLister, n notifier.Notifier, logger *slog.Logger) *Inspector {
	return &Inspector{
		windows:  windows,
		displays: displays,
		players:  videoPlayers,
		selfPID:  int32(os.Getpid()),
		procName: processName,
		notifier: n,
		logger:   logger,
	}
}

// ForegroundBusy reports whether at least one window indicates active user
// work: owned by another process, viewable, not minimized, not a tool
// window, and carrying a title.
func (i *Inspector) ForegroundBusy() bool {
	windows, err := i.windows.Windows()
	if err != nil {
		i.degrade(err)
		return false
	}
	for _, w := range windows {
		if i.blocking(w) {
			i.logger.Debug("blocking window found", "title", w.Title, "pid", w.PID)
			return true
		}
	}
	return false
}

func (i *Inspector) blocking(w platform.Window) bool {
	return w.PID != i.selfPID && w.Visible && !w.Minimized && !w.ToolWindow && w.Title != ""
}

// VideoPlaying reports whether a known video player or browser window covers
// a display within the fullscreen tolerance.
func (i *Inspector) VideoPlaying() bool {
	windows, err := i.windows.Windows()
	if err != nil {
		i.degrade(err)
		return false
	}
	displays, err := i.displays.Displays()
	if err != nil {
		i.degrade(err)
		return false
	}

	for _, w := range windows {
		if !w.Visible || w.Minimized || !i.isPlayer(w) {
			continue
		}
		if display, ok := displayFor(w.Bounds, displays); ok && fullscreen(w.Bounds, display.Bounds) {
			i.logger.Debug("fullscreen video window found", "title", w.Title, "pid", w.PID, "display", display.Index)
			return true
		}
	}
	return false
}

// isPlayer matches the window's owning process name against the allow-list,
// falling back to the window class when the process cannot be resolved.
func (i *Inspector) isPlayer(w platform.Window) bool {
	if w.PID != 0 {
		if name, err := i.procName(w.PID); err == nil && i.players.Contains(normalizeExe(name)) {
			return true
		}
	}
	return i.players.Contains(normalizeExe(w.Class))
}

func (i *Inspector) degrade(err error) {
	if i.notified.Swap(true) {
		i.logger.Debug("window enumeration failed", "err", err)
		return
	}
	i.logger.Warn("window enumeration failed, treating the desktop as idle", "err", err)
	i.notifier.Notify(notifier.Event{
		Kind:    notifier.Error,
		Message: fmt.Sprintf("window enumeration failed: %v", err),
		Time:    time.Now(),
	})
}

// displayFor finds the display containing the window's center.
func displayFor(bounds platform.Rect, displays []platform.Display) (platform.Display, bool) {
	x, y := bounds.Center()
	for _, d := range displays {
		if d.Bounds.Contains(x, y) {
			return d, true
		}
	}
	return platform.Display{}, false
}

func fullscreen(w, d platform.Rect) bool {
	return w.Width >= d.Width-widthTolerance && w.Height >= d.Height-heightTolerance
}

func normalizeExe(name string) string {
	return strings.TrimSuffix(strings.ToLower(name), ".exe")
}

func processName(pid int32) (string, error) {
	p, err := process.NewProcess(pid)
	if err != nil {
		return "", err
	}
	return p.Name()
}
