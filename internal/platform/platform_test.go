package platform_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/restmode/restmode/internal/platform"
	"github.com/stretchr/testify/assert"
)

func TestRect(t *testing.T) {
	r := platform.Rect{X: 100, Y: 50, Width: 1920, Height: 1080}

	assert.True(t, r.Contains(100, 50))
	assert.True(t, r.Contains(1000, 500))
	assert.False(t, r.Contains(99, 50))
	assert.False(t, r.Contains(2020, 50))

	x, y := r.Center()
	assert.Equal(t, 1060, x)
	assert.Equal(t, 590, y)
}

func TestHotkey_String(t *testing.T) {
	assert.Equal(t, "ctrl+alt+s", platform.Hotkey{Key: 's', Ctrl: true, Alt: true}.String())
	assert.Equal(t, "q", platform.Hotkey{Key: 'q'}.String())
}

func TestUnsupported(t *testing.T) {
	p := platform.Unsupported{Reason: errors.New("no display")}

	_, err := p.IdleTime()
	assert.ErrorIs(t, err, platform.ErrUnsupported)
	_, err = p.Windows()
	assert.ErrorIs(t, err, platform.ErrUnsupported)
	_, err = p.Displays()
	assert.ErrorIs(t, err, platform.ErrUnsupported)
	_, err = p.CreateSurface(platform.Display{}, func() {})
	assert.ErrorIs(t, err, platform.ErrUnsupported)
	err = p.BindHotkey(platform.Hotkey{Key: 's', Ctrl: true, Alt: true}, func() {})
	assert.ErrorIs(t, err, platform.ErrUnsupported)
	assert.ErrorIs(t, p.DisplaysOff(), platform.ErrUnsupported)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	assert.NoError(t, p.Run(ctx))
}
