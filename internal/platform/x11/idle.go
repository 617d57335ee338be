package x11

import (
	"time"

	"github.com/jezek/xgb/screensaver"
	"github.com/jezek/xgb/xproto"
	"github.com/pkg/errors"
)

// IdleTime returns the time since the last user input seen by the X server,
// as reported by the MIT-SCREEN-SAVER extension.
func (c *Client) IdleTime() (time.Duration, error) {
	if !c.hasScreenSaver {
		return 0, errors.New("screensaver extension not available")
	}
	reply, err := screensaver.QueryInfo(c.conn, xproto.Drawable(c.root)).Reply()
	if err != nil {
		return 0, errors.Wrap(err, "query info")
	}
	return time.Duration(reply.MsSinceUserInput) * time.Millisecond, nil
}
