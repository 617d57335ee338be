package x11

import (
	"encoding/binary"
	"log/slog"
	"strings"

	"github.com/jezek/xgb/xproto"
	"github.com/pkg/errors"

	"github.com/restmode/restmode/internal/platform"
)

const maxPropertyLength = 1024 // in 32-bit units

// Windows enumerates the window manager's client list and resolves each
// window's title, class, owner PID, state and geometry. Windows that vanish
// mid-enumeration are skipped.
func (c *Client) Windows() ([]platform.Window, error) {
	data, err := c.property(c.root, netClientList, xproto.AtomWindow, maxPropertyLength)
	if err != nil {
		return nil, errors.Wrap(err, "client list")
	}

	ids := decodeWindowIDs(data)
	windows := make([]platform.Window, 0, len(ids))
	for _, id := range ids {
		w, err := c.describeWindow(id)
		if err != nil {
			c.logger.Debug("window skipped", slog.Any("err", err), slog.Any("window", id))
			continue
		}
		windows = append(windows, w)
	}
	return windows, nil
}

func (c *Client) describeWindow(id xproto.Window) (platform.Window, error) {
	attrs, err := xproto.GetWindowAttributes(c.conn, id).Reply()
	if err != nil {
		return platform.Window{}, errors.Wrap(err, "attributes")
	}

	geo, err := xproto.GetGeometry(c.conn, xproto.Drawable(id)).Reply()
	if err != nil {
		return platform.Window{}, errors.Wrap(err, "geometry")
	}
	pos, err := xproto.TranslateCoordinates(c.conn, id, c.root, 0, 0).Reply()
	if err != nil {
		return platform.Window{}, errors.Wrap(err, "coordinates")
	}

	states := c.atomListProperty(id, netWMState)
	types := c.atomListProperty(id, netWMWindowType)

	return platform.Window{
		ID:         uint32(id),
		PID:        int32(c.cardinalProperty(id, netWMPID)),
		Title:      c.title(id),
		Class:      c.class(id),
		Bounds:     platform.Rect{X: int(pos.DstX), Y: int(pos.DstY), Width: int(geo.Width), Height: int(geo.Height)},
		Visible:    attrs.MapState == xproto.MapStateViewable,
		Minimized:  containsAtom(states, c.atoms[netWMStateHidden]),
		ToolWindow: c.isToolWindow(states, types),
	}, nil
}

func (c *Client) isToolWindow(states, types []xproto.Atom) bool {
	if containsAtom(states, c.atoms[netWMStateSkipTask]) {
		return true
	}
	for _, name := range []string{typeUtility, typeToolbar, typeDock, typeSplash, typeMenu, typeNotification} {
		if containsAtom(types, c.atoms[name]) {
			return true
		}
	}
	return false
}

// title returns the window's name, preferring the EWMH UTF-8 property over
// the legacy ICCCM one.
func (c *Client) title(id xproto.Window) string {
	if data, err := c.property(id, netWMName, c.atoms[utf8String], maxPropertyLength); err == nil && len(data) > 0 {
		return decodeString(data)
	}
	if data, err := c.property(id, wmName, xproto.AtomString, maxPropertyLength); err == nil && len(data) > 0 {
		return decodeString(data)
	}
	return ""
}

// class returns the class part of WM_CLASS (the second of its two fields).
func (c *Client) class(id xproto.Window) string {
	data, err := c.property(id, wmClass, xproto.AtomString, maxPropertyLength)
	if err != nil {
		return ""
	}
	_, class := decodeClass(data)
	return class
}

func (c *Client) cardinalProperty(id xproto.Window, name string) uint32 {
	data, err := c.property(id, name, xproto.AtomCardinal, 1)
	if err != nil || len(data) < 4 {
		return 0
	}
	return binary.LittleEndian.Uint32(data)
}

func (c *Client) atomListProperty(id xproto.Window, name string) []xproto.Atom {
	data, err := c.property(id, name, xproto.AtomAtom, maxPropertyLength)
	if err != nil {
		return nil
	}
	return decodeAtoms(data)
}

func decodeWindowIDs(data []byte) []xproto.Window {
	ids := make([]xproto.Window, 0, len(data)/4)
	for len(data) >= 4 {
		ids = append(ids, xproto.Window(binary.LittleEndian.Uint32(data)))
		data = data[4:]
	}
	return ids
}

func decodeAtoms(data []byte) []xproto.Atom {
	atoms := make([]xproto.Atom, 0, len(data)/4)
	for len(data) >= 4 {
		atoms = append(atoms, xproto.Atom(binary.LittleEndian.Uint32(data)))
		data = data[4:]
	}
	return atoms
}

func decodeString(data []byte) string {
	return strings.TrimRight(string(data), "\x00")
}

// decodeClass splits a WM_CLASS property into its instance and class fields.
func decodeClass(data []byte) (instance, class string) {
	parts := strings.Split(decodeString(data), "\x00")
	if len(parts) >= 1 {
		instance = parts[0]
	}
	if len(parts) >= 2 {
		class = parts[1]
	}
	return instance, class
}

func containsAtom(atoms []xproto.Atom, atom xproto.Atom) bool {
	for _, a := range atoms {
		if a == atom {
			return true
		}
	}
	return false
}
