// Package render produces RGB snapshots of the world and carries the window
// signals (resize, minimize, restore, close) into the event bus. Raster is a
// plain software rasterizer good enough for debugging and replays; Headless
// is a window that only exists as a signal queue.
package render

import (
	"errors"
	"fmt"
	"math"

	"github.com/talgya/bountyhunter/internal/event"
	"github.com/talgya/bountyhunter/internal/world"
)

// ErrSize is returned for a non-positive framebuffer size.
var ErrSize = errors.New("invalid framebuffer size")

// Frame is a packed RGB8 image, rows top to bottom.
type Frame struct {
	Width  int
	Height int
	Pix    []byte
}

// At returns the colour of pixel (x, y).
func (f Frame) At(x, y int) [3]byte {
	i := (y*f.Width + x) * 3
	return [3]byte{f.Pix[i], f.Pix[i+1], f.Pix[i+2]}
}

// Renderer draws the world on request.
type Renderer interface {
	Update(dt float64)
	// CopyFrame copies the last rendered frame into dst, growing it as
	// needed, and returns it.
	CopyFrame(dst *Frame) *Frame
}

// Raster is the software Renderer.
type Raster struct {
	w        *world.World
	min, max float64
	frame    Frame
	hidden   bool
	debug    bool

	listener *event.Listener
}

// NewRaster creates a rasterizer mapping the square [min, max] onto a
// width x height buffer. It follows WindowResized, WindowMinimized and
// WindowRestored events published on bus.
func NewRaster(w *world.World, bus *event.Bus, width, height int, min, max float64) (*Raster, error) {
	r := &Raster{w: w, min: min, max: max, listener: event.NewListener(bus)}
	if err := r.Resize(width, height); err != nil {
		return nil, err
	}
	event.On(r.listener, func(ev event.WindowResized) { _ = r.Resize(ev.Width, ev.Height) })
	event.On(r.listener, func(event.WindowMinimized) { r.hidden = true })
	event.On(r.listener, func(event.WindowRestored) { r.hidden = false })
	return r, nil
}

// SetDebug toggles drawing of spawn regions.
func (r *Raster) SetDebug(on bool) { r.debug = on }

// Close drops the window subscriptions.
func (r *Raster) Close() { r.listener.UnsubscribeAll() }

// Resize reallocates the framebuffer.
func (r *Raster) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrSize, width, height)
	}
	r.frame = Frame{Width: width, Height: height, Pix: make([]byte, width*height*3)}
	return nil
}

// Size returns the framebuffer size.
func (r *Raster) Size() (int, int) { return r.frame.Width, r.frame.Height }

// CopyFrame implements Renderer.
func (r *Raster) CopyFrame(dst *Frame) *Frame {
	if dst == nil {
		dst = &Frame{}
	}
	dst.Width, dst.Height = r.frame.Width, r.frame.Height
	if cap(dst.Pix) < len(r.frame.Pix) {
		dst.Pix = make([]byte, len(r.frame.Pix))
	}
	dst.Pix = dst.Pix[:len(r.frame.Pix)]
	copy(dst.Pix, r.frame.Pix)
	return dst
}

var (
	background = [3]byte{16, 16, 24}
	wallColor  = [3]byte{90, 90, 90}
	spawnColor = [3]byte{40, 40, 60}
)

// Update draws the world unless the window is minimized.
func (r *Raster) Update(float64) {
	if r.hidden {
		return
	}
	for i := 0; i < len(r.frame.Pix); i += 3 {
		r.frame.Pix[i], r.frame.Pix[i+1], r.frame.Pix[i+2] = background[0], background[1], background[2]
	}

	// Back to front: regions, walls, stashes, bounties, collectors.
	if r.debug {
		r.w.EachOf(world.ArchetypeBountySpawn, func(e *world.Entity) {
			if e.Region != nil {
				r.box(e.Region.Anchor, e.Region.HalfExtent, e.Region.Orientation, spawnColor)
			}
		})
	}
	r.w.EachOf(world.ArchetypeWall, func(e *world.Entity) {
		if e.Body != nil {
			r.box(e.Body.Position, e.Body.HalfExtent, e.Body.Angle, wallColor)
		}
	})
	r.w.EachOf(world.ArchetypeStash, func(e *world.Entity) {
		if e.Body != nil && e.Stash != nil {
			r.disc(e.Body.Position, e.Body.Radius, shade(world.PlayerColor(e.Stash.Owner), 0.5))
		}
	})
	r.w.EachOf(world.ArchetypeBounty, func(e *world.Entity) {
		if e.Active && e.Body != nil && e.Bounty != nil {
			r.disc(e.Body.Position, e.Body.Radius, shade(e.Bounty.Color, 1))
		}
	})
	r.w.EachOf(world.ArchetypeCollector, func(e *world.Entity) {
		if e.Active && e.Body != nil && e.Collector != nil {
			r.disc(e.Body.Position, e.Body.Radius, shade(world.PlayerColor(e.Collector.Owner), 1))
		}
	})
}

func shade(c [4]float64, k float64) [3]byte {
	ch := func(v float64) byte { return byte(math.Round(world.Clamp(v*k, 0, 1) * 255)) }
	return [3]byte{ch(c[0]), ch(c[1]), ch(c[2])}
}

// toPixel maps world coordinates to the framebuffer; +Y is up.
func (r *Raster) toPixel(p world.Vec2) (float64, float64) {
	span := r.max - r.min
	x := (p.X - r.min) / span * float64(r.frame.Width)
	y := (r.max - p.Y) / span * float64(r.frame.Height)
	return x, y
}

func (r *Raster) toWorld(px, py float64) world.Vec2 {
	span := r.max - r.min
	return world.Vec2{
		X: r.min + px/float64(r.frame.Width)*span,
		Y: r.max - py/float64(r.frame.Height)*span,
	}
}

// fill colours every pixel in the world-space bounding box whose centre
// satisfies inside.
func (r *Raster) fill(lo, hi world.Vec2, c [3]byte, inside func(world.Vec2) bool) {
	x0, y0 := r.toPixel(world.Vec2{X: lo.X, Y: hi.Y})
	x1, y1 := r.toPixel(world.Vec2{X: hi.X, Y: lo.Y})
	ix0, iy0 := clampInt(int(math.Floor(x0)), 0, r.frame.Width), clampInt(int(math.Floor(y0)), 0, r.frame.Height)
	ix1, iy1 := clampInt(int(math.Ceil(x1)), 0, r.frame.Width), clampInt(int(math.Ceil(y1)), 0, r.frame.Height)
	for y := iy0; y < iy1; y++ {
		for x := ix0; x < ix1; x++ {
			if inside(r.toWorld(float64(x)+0.5, float64(y)+0.5)) {
				i := (y*r.frame.Width + x) * 3
				r.frame.Pix[i], r.frame.Pix[i+1], r.frame.Pix[i+2] = c[0], c[1], c[2]
			}
		}
	}
}

func (r *Raster) disc(center world.Vec2, radius float64, c [3]byte) {
	ext := world.Vec2{X: radius, Y: radius}
	r.fill(center.Sub(ext), center.Add(ext), c, func(p world.Vec2) bool {
		d := p.Sub(center)
		return d.Dot(d) <= radius*radius
	})
}

func (r *Raster) box(center, half world.Vec2, angle float64, c [3]byte) {
	region := world.Region{Anchor: center, HalfExtent: half, Orientation: angle}
	ext := world.Vec2{X: half.Len(), Y: half.Len()}
	r.fill(center.Sub(ext), center.Add(ext), c, region.Contains)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
