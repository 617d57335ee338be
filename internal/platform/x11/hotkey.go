package x11

import (
	"github.com/jezek/xgb/xproto"
	"github.com/pkg/errors"

	"github.com/restmode/restmode/internal/platform"
)

type hotkeyKey struct {
	code xproto.Keycode
	mods uint16
}

// lockVariants are the extra modifier combinations to grab so a binding
// fires regardless of NumLock and CapsLock state.
var lockVariants = []uint16{
	0,
	xproto.ModMask2,
	xproto.ModMaskLock,
	xproto.ModMask2 | xproto.ModMaskLock,
}

// baseModifiers strips lock and button bits from an event's state, leaving
// only the modifiers a binding is matched on.
func baseModifiers(state uint16) uint16 {
	return state & (xproto.ModMaskShift | xproto.ModMaskControl |
		xproto.ModMask1 | xproto.ModMask3 | xproto.ModMask4 | xproto.ModMask5)
}

func modifiersFor(hotkey platform.Hotkey) uint16 {
	var mods uint16
	if hotkey.Ctrl {
		mods |= xproto.ModMaskControl
	}
	if hotkey.Alt {
		mods |= xproto.ModMask1
	}
	return mods
}

// BindHotkey grabs the key system-wide on the root window. fn runs on the
// event loop whenever the hotkey is pressed, whatever window has focus.
func (c *Client) BindHotkey(hotkey platform.Hotkey, fn func()) error {
	if hotkey.Key < 0x20 || hotkey.Key > 0x7e {
		return errors.Errorf("unsupported key %q", hotkey.Key)
	}
	code, err := c.keycode(xproto.Keysym(hotkey.Key))
	if err != nil {
		return errors.Wrapf(err, "bind %s", hotkey)
	}

	mods := modifiersFor(hotkey)
	for i, variant := range lockVariants {
		err = xproto.GrabKeyChecked(c.conn, true, c.root, mods|variant, code, xproto.GrabModeAsync, xproto.GrabModeAsync).Check()
		if err != nil {
			for _, granted := range lockVariants[:i] {
				_ = xproto.UngrabKeyChecked(c.conn, code, c.root, mods|granted).Check()
			}
			return errors.Wrapf(err, "grab %s", hotkey)
		}
	}

	c.mu.Lock()
	c.hotkeys[hotkeyKey{code: code, mods: mods}] = fn
	c.mu.Unlock()

	c.logger.Debug("hotkey bound", "hotkey", hotkey.String())
	return nil
}

// keycode finds the keycode whose unshifted keysym matches sym.
func (c *Client) keycode(sym xproto.Keysym) (xproto.Keycode, error) {
	first := c.setup.MinKeycode
	count := byte(c.setup.MaxKeycode - c.setup.MinKeycode + 1)
	reply, err := xproto.GetKeyboardMapping(c.conn, first, count).Reply()
	if err != nil {
		return 0, errors.Wrap(err, "keyboard mapping")
	}
	per := int(reply.KeysymsPerKeycode)
	if per == 0 {
		return 0, errors.New("empty keyboard mapping")
	}
	for i := range int(count) {
		if reply.Keysyms[i*per] == sym {
			return first + xproto.Keycode(i), nil
		}
	}
	return 0, errors.Errorf("no keycode for keysym %#x", uint32(sym))
}
