package x11

import (
	"github.com/jezek/xgb/dpms"
	"github.com/pkg/errors"
)

// DisplaysOff forces all displays into the DPMS off power level. The server
// wakes them again on the next input event.
func (c *Client) DisplaysOff() error {
	if !c.hasDPMS {
		return errors.New("dpms extension not available")
	}
	if err := dpms.EnableChecked(c.conn).Check(); err != nil {
		return errors.Wrap(err, "enable")
	}
	if err := dpms.ForceLevelChecked(c.conn, dpms.DPMSModeOff).Check(); err != nil {
		return errors.Wrap(err, "force level")
	}
	return nil
}
