package sink

import (
	"context"
	"fmt"

	"github.com/gdamore/tcell/v2"

	"github.com/scheerer/pslight/internal/color"
)

// Terminal draws the strip as a row of colored cells, for running without
// hardware. It owns the terminal while started.
type Terminal struct {
	screen tcell.Screen
	frames latest
	onQuit func()
}

// NewTerminal prepares a screen. onQuit runs when the user presses q, Esc
// or Ctrl+C, since the terminal swallows the interrupt signal.
func NewTerminal(onQuit func()) (*Terminal, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, fmt.Errorf("terminal: %w", err)
	}
	return newTerminal(screen, onQuit), nil
}

func newTerminal(screen tcell.Screen, onQuit func()) *Terminal {
	return &Terminal{
		screen: screen,
		frames: newLatest(),
		onQuit: onQuit,
	}
}

func (t *Terminal) Write(frame []color.Color) error {
	t.frames.offer(frame)
	return nil
}

func (t *Terminal) Start(ctx context.Context) error {
	if err := t.screen.Init(); err != nil {
		return fmt.Errorf("terminal: %w", err)
	}
	defer t.screen.Fini()

	events := make(chan tcell.Event, 8)
	go func() {
		// PollEvent returns nil once the screen is finalized
		for ev := t.screen.PollEvent(); ev != nil; ev = t.screen.PollEvent() {
			select {
			case events <- ev:
			default:
			}
		}
	}()

	var last []color.Color
	for {
		select {
		case <-ctx.Done():
			return nil
		case frame := <-t.frames.ch:
			last = frame
			t.draw(last)
		case ev := <-events:
			switch ev := ev.(type) {
			case *tcell.EventResize:
				t.screen.Sync()
				t.draw(last)
			case *tcell.EventKey:
				if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC || ev.Rune() == 'q' {
					if t.onQuit != nil {
						t.onQuit()
					}
				}
			}
		}
	}
}

// draw wraps the strip over as many rows as the terminal needs, two cells
// per pixel so the row is readable.
func (t *Terminal) draw(frame []color.Color) {
	t.screen.Clear()
	width, _ := t.screen.Size()
	perRow := width / 2
	if perRow < 1 {
		perRow = 1
	}

	for i, c := range frame {
		r, g, b := c.RGB255()
		style := tcell.StyleDefault.Background(tcell.NewRGBColor(int32(r), int32(g), int32(b)))
		x := (i % perRow) * 2
		y := i / perRow
		t.screen.SetContent(x, y, ' ', nil, style)
		t.screen.SetContent(x+1, y, ' ', nil, style)
	}
	t.screen.Show()
}
