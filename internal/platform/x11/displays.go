package x11

import (
	"log/slog"

	"github.com/jezek/xgb/xinerama"

	"github.com/restmode/restmode/internal/platform"
)

// Displays returns the geometry of all connected displays via Xinerama.
// Without an active Xinerama extension it falls back to the root screen as a
// single display.
func (c *Client) Displays() ([]platform.Display, error) {
	if c.hasXinerama {
		reply, err := xinerama.QueryScreens(c.conn).Reply()
		if err == nil && len(reply.ScreenInfo) > 0 {
			displays := make([]platform.Display, len(reply.ScreenInfo))
			for i, info := range reply.ScreenInfo {
				displays[i] = platform.Display{
					Index:  i,
					Bounds: platform.Rect{X: int(info.XOrg), Y: int(info.YOrg), Width: int(info.Width), Height: int(info.Height)},
				}
			}
			return displays, nil
		}
		c.logger.Debug("xinerama query failed, using the root screen geometry", slog.Any("err", err))
	}
	return []platform.Display{{
		Index:  0,
		Bounds: platform.Rect{Width: int(c.screen.WidthInPixels), Height: int(c.screen.HeightInPixels)},
	}}, nil
}
