// Package x11 implements the platform interfaces on top of a raw X11
// connection: idle time via the MIT-SCREEN-SAVER extension, window
// enumeration via EWMH properties, displays via Xinerama, overlay surfaces
// as override-redirect windows and display power control via DPMS.
package x11

import (
	"context"
	"log/slog"
	"sync"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/dpms"
	"github.com/jezek/xgb/screensaver"
	"github.com/jezek/xgb/xinerama"
	"github.com/jezek/xgb/xproto"
	"github.com/pkg/errors"

	"github.com/restmode/restmode/internal/platform"
)

var _ platform.Platform = &Client{}

// Client is a connection to an X11 display server. A single Client is safe
// for concurrent use; its event loop (Run) must be running for surface input
// and hotkey callbacks to fire.
type Client struct {
	conn   *xgb.Conn
	setup  *xproto.SetupInfo
	screen *xproto.ScreenInfo
	root   xproto.Window
	atoms  map[string]xproto.Atom
	logger *slog.Logger

	hasScreenSaver bool
	hasXinerama    bool
	hasDPMS        bool

	fontOnce sync.Once
	fontErr  error
	font     xproto.Font

	mu       sync.RWMutex
	surfaces map[xproto.Window]*surface
	hotkeys  map[hotkeyKey]func()
}

const (
	netClientList      = "_NET_CLIENT_LIST"
	netWMName          = "_NET_WM_NAME"
	netWMPID           = "_NET_WM_PID"
	netWMState         = "_NET_WM_STATE"
	netWMStateHidden   = "_NET_WM_STATE_HIDDEN"
	netWMStateSkipTask = "_NET_WM_STATE_SKIP_TASKBAR"
	netWMWindowType    = "_NET_WM_WINDOW_TYPE"
	wmName             = "WM_NAME"
	wmClass            = "WM_CLASS"
	utf8String         = "UTF8_STRING"

	typeUtility      = "_NET_WM_WINDOW_TYPE_UTILITY"
	typeToolbar      = "_NET_WM_WINDOW_TYPE_TOOLBAR"
	typeDock         = "_NET_WM_WINDOW_TYPE_DOCK"
	typeSplash       = "_NET_WM_WINDOW_TYPE_SPLASH"
	typeMenu         = "_NET_WM_WINDOW_TYPE_MENU"
	typeNotification = "_NET_WM_WINDOW_TYPE_NOTIFICATION"
)

var atomNames = []string{
	netClientList, netWMName, netWMPID, netWMState, netWMStateHidden, netWMStateSkipTask,
	netWMWindowType, wmName, wmClass, utf8String,
	typeUtility, typeToolbar, typeDock, typeSplash, typeMenu, typeNotification,
}

// New connects to the X server named by $DISPLAY and initializes the
// extensions the backend uses. Missing extensions are not fatal: the
// capabilities that need them fail individually instead.
func New(logger *slog.Logger) (*Client, error) {
	conn, err := xgb.NewConn()
	if err != nil {
		return nil, errors.Wrap(err, "connect")
	}

	setup := xproto.Setup(conn)
	screen := setup.DefaultScreen(conn)

	c := Client{
		conn:     conn,
		setup:    setup,
		screen:   screen,
		root:     screen.Root,
		atoms:    make(map[string]xproto.Atom, len(atomNames)),
		logger:   logger,
		surfaces: make(map[xproto.Window]*surface),
		hotkeys:  make(map[hotkeyKey]func()),
	}

	for _, name := range atomNames {
		reply, err := xproto.InternAtom(conn, false, uint16(len(name)), name).Reply()
		if err != nil {
			conn.Close()
			return nil, errors.Wrapf(err, "intern %s", name)
		}
		c.atoms[name] = reply.Atom
	}

	if err = screensaver.Init(conn); err == nil {
		c.hasScreenSaver = true
	} else {
		logger.Warn("screensaver extension not available", slog.Any("err", err))
	}
	if err = xinerama.Init(conn); err == nil {
		reply, err := xinerama.IsActive(conn).Reply()
		c.hasXinerama = err == nil && reply.State != 0
	}
	if !c.hasXinerama {
		logger.Debug("xinerama not active, using the root screen geometry")
	}
	if err = dpms.Init(conn); err == nil {
		c.hasDPMS = true
	} else {
		logger.Warn("dpms extension not available", slog.Any("err", err))
	}

	return &c, nil
}

// Run pumps X events until ctx is canceled, dispatching input on overlay
// surfaces, hotkey presses and expose repaints.
func (c *Client) Run(ctx context.Context) error {
	c.logger.Debug("x11 event loop started")
	defer c.logger.Debug("x11 event loop stopped")

	go func() {
		<-ctx.Done()
		c.conn.Close()
	}()

	for {
		ev, xerr := c.conn.WaitForEvent()
		if ev == nil && xerr == nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.New("connection closed")
		}
		if xerr != nil {
			c.logger.Debug("x11 error event", slog.Any("err", xerr))
			continue
		}
		c.dispatch(ev)
	}
}

func (c *Client) dispatch(ev xgb.Event) {
	switch e := ev.(type) {
	case xproto.KeyPressEvent:
		if fn := c.hotkeyFunc(e.Detail, e.State); fn != nil {
			fn()
			return
		}
		c.surfaceInput(e.Event, "key")
	case xproto.ButtonPressEvent:
		c.surfaceInput(e.Event, "button")
	case xproto.MotionNotifyEvent:
		c.surfaceInput(e.Event, "motion")
	case xproto.ExposeEvent:
		if s := c.surfaceFor(e.Window); s != nil && e.Count == 0 {
			s.repaint()
		}
	}
}

func (c *Client) surfaceInput(id xproto.Window, kind string) {
	if s := c.surfaceFor(id); s != nil {
		c.logger.Debug("surface input", slog.String("kind", kind), slog.Any("window", id))
		s.onInput()
	}
}

func (c *Client) surfaceFor(id xproto.Window) *surface {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.surfaces[id]
}

func (c *Client) hotkeyFunc(code xproto.Keycode, state uint16) func() {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hotkeys[hotkeyKey{code: code, mods: baseModifiers(state)}]
}

// property fetches up to length 32-bit units of a window property, returning
// its raw bytes. A missing property yields an empty slice, not an error.
func (c *Client) property(w xproto.Window, name string, typ xproto.Atom, length uint32) ([]byte, error) {
	reply, err := xproto.GetProperty(c.conn, false, w, c.atoms[name], typ, 0, length).Reply()
	if err != nil {
		return nil, err
	}
	return reply.Value, nil
}
