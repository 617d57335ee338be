package x11

import (
	"strings"
	"sync"

	"github.com/jezek/xgb/xproto"
	"github.com/pkg/errors"

	"github.com/restmode/restmode/internal/platform"
)

// Core "fixed" font cell metrics, used to center text on the surface.
const (
	charWidth  = 6
	fontAscent = 11
	lineHeight = 20

	maxTextLen = 255 // ImageText8 limit

	surfaceEventMask = xproto.EventMaskKeyPress | xproto.EventMaskButtonPress |
		xproto.EventMaskPointerMotion | xproto.EventMaskExposure
)

var _ platform.Surface = &surface{}

type surface struct {
	client  *Client
	id      xproto.Window
	bounds  platform.Rect
	gcFill  xproto.Gcontext
	gcText  xproto.Gcontext
	onInput func()

	mu     sync.Mutex
	lines  []string
	closed bool
}

// CreateSurface creates a black, override-redirect window covering the
// display, raised above all others and holding input focus. Any key, button
// or pointer-motion event on it invokes onInput from the event loop.
func (c *Client) CreateSurface(display platform.Display, onInput func()) (platform.Surface, error) {
	if err := c.ensureFont(); err != nil {
		return nil, err
	}

	id, err := xproto.NewWindowId(c.conn)
	if err != nil {
		return nil, errors.Wrap(err, "window id")
	}

	b := display.Bounds
	err = xproto.CreateWindowChecked(c.conn, c.screen.RootDepth, id, c.root,
		int16(b.X), int16(b.Y), uint16(b.Width), uint16(b.Height), 0,
		xproto.WindowClassInputOutput, c.screen.RootVisual,
		xproto.CwBackPixel|xproto.CwOverrideRedirect|xproto.CwEventMask,
		[]uint32{c.screen.BlackPixel, 1, surfaceEventMask}).Check()
	if err != nil {
		return nil, errors.Wrap(err, "create window")
	}

	s := surface{client: c, id: id, bounds: b, onInput: onInput}
	if s.gcFill, err = c.createGC(id, xproto.GcForeground, []uint32{c.screen.BlackPixel}); err != nil {
		s.destroy()
		return nil, errors.Wrap(err, "fill gc")
	}
	if s.gcText, err = c.createGC(id,
		xproto.GcForeground|xproto.GcBackground|xproto.GcFont,
		[]uint32{c.screen.WhitePixel, c.screen.BlackPixel, uint32(c.font)},
	); err != nil {
		s.destroy()
		return nil, errors.Wrap(err, "text gc")
	}

	if err = xproto.MapWindowChecked(c.conn, id).Check(); err != nil {
		s.destroy()
		return nil, errors.Wrap(err, "map window")
	}
	if err = xproto.ConfigureWindowChecked(c.conn, id, xproto.ConfigWindowStackMode, []uint32{xproto.StackModeAbove}).Check(); err != nil {
		s.destroy()
		return nil, errors.Wrap(err, "raise window")
	}
	// Focus steal can fail (e.g. another grab in progress). Pointer and
	// button events still reach the surface, so this is not fatal.
	if err = xproto.SetInputFocusChecked(c.conn, xproto.InputFocusPointerRoot, id, xproto.TimeCurrentTime).Check(); err != nil {
		c.logger.Debug("surface did not get input focus", "err", err)
	}

	c.mu.Lock()
	c.surfaces[id] = &s
	c.mu.Unlock()

	c.logger.Debug("surface created", "window", id, "display", display.Index)
	return &s, nil
}

func (c *Client) createGC(w xproto.Window, mask uint32, values []uint32) (xproto.Gcontext, error) {
	gc, err := xproto.NewGcontextId(c.conn)
	if err != nil {
		return 0, err
	}
	if err = xproto.CreateGCChecked(c.conn, gc, xproto.Drawable(w), mask, values).Check(); err != nil {
		return 0, err
	}
	return gc, nil
}

func (c *Client) ensureFont() error {
	c.fontOnce.Do(func() {
		var font xproto.Font
		if font, c.fontErr = xproto.NewFontId(c.conn); c.fontErr != nil {
			return
		}
		const name = "fixed"
		if c.fontErr = xproto.OpenFontChecked(c.conn, font, uint16(len(name)), name).Check(); c.fontErr != nil {
			return
		}
		c.font = font
	})
	return errors.Wrap(c.fontErr, "font")
}

// Draw replaces the surface content with the given lines, centered on the
// display. Runes outside Latin-1 (the core font's repertoire) are dropped.
func (s *surface) Draw(lines []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("surface closed")
	}
	s.lines = lines
	return s.paintLocked()
}

// repaint redraws the last content, e.g. after an expose event.
func (s *surface) repaint() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if err := s.paintLocked(); err != nil {
		s.client.logger.Debug("repaint failed", "err", err)
	}
}

func (s *surface) paintLocked() error {
	d := xproto.Drawable(s.id)
	err := xproto.PolyFillRectangleChecked(s.client.conn, d, s.gcFill,
		[]xproto.Rectangle{{Width: uint16(s.bounds.Width), Height: uint16(s.bounds.Height)}}).Check()
	if err != nil {
		return errors.Wrap(err, "fill")
	}

	y := s.bounds.Height/2 - len(s.lines)*lineHeight/2 + fontAscent
	for _, line := range s.lines {
		text := encodeLatin1(line)
		if len(text) > maxTextLen {
			text = text[:maxTextLen]
		}
		if text != "" {
			x := (s.bounds.Width - len(text)*charWidth) / 2
			if x < 0 {
				x = 0
			}
			if err = xproto.ImageText8Checked(s.client.conn, byte(len(text)), d, s.gcText, int16(x), int16(y), text).Check(); err != nil {
				return errors.Wrap(err, "text")
			}
		}
		y += lineHeight
	}
	return nil
}

// Close destroys the surface's window. Closing twice is a no-op.
func (s *surface) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.client.mu.Lock()
	delete(s.client.surfaces, s.id)
	s.client.mu.Unlock()

	s.destroy()
	s.client.logger.Debug("surface closed", "window", s.id)
	return nil
}

func (s *surface) destroy() {
	if s.gcFill != 0 {
		xproto.FreeGC(s.client.conn, s.gcFill)
	}
	if s.gcText != 0 {
		xproto.FreeGC(s.client.conn, s.gcText)
	}
	if err := xproto.DestroyWindowChecked(s.client.conn, s.id).Check(); err != nil {
		s.client.logger.Debug("destroy window failed", "err", err)
	}
}

// encodeLatin1 converts a string to the byte encoding the core font expects,
// dropping control characters and runes beyond Latin-1. Bullets degrade to
// the Latin-1 middle dot so list items keep their marker.
func encodeLatin1(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '•':
			b.WriteByte(0xb7)
		case r >= 0x20 && r <= 0xFF:
			b.WriteByte(byte(r))
		}
	}
	return strings.TrimSpace(b.String())
}
