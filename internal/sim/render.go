package sim

import (
	"hash/fnv"
	"image"
	"image/color"
	"math"
	"sort"

	"github.com/fogleman/gg"

	"github.com/san-kum/vlasim/internal/geom"
)

const (
	nearPlane = 0.01
	// depth images store millimetres
	depthScale = 1000.0
	linkRadius = 0.05
)

var (
	background = color.RGBA{R: 182, G: 196, B: 210, A: 255}
	armColor   = color.RGBA{R: 235, G: 235, B: 240, A: 255}
	jointColor = color.RGBA{R: 40, G: 40, B: 48, A: 255}
)

// drawable is a sphere or a segment in world coordinates.
type drawable struct {
	a, b   geom.Vec3
	radius float64
	color  color.Color
	line   bool
}

func (w *World) drawables() []drawable {
	out := make([]drawable, 0, len(w.bodies)+16)
	for _, b := range w.bodies {
		if b.spec.Hidden {
			continue
		}
		r := b.radius()
		if b.spec.Shape == ShapeBox {
			r = b.spec.Size.Scale(0.5).Norm()
		}
		out = append(out, drawable{a: b.pos, radius: r, color: entityColor(b.spec)})
	}
	for _, a := range w.arms {
		prev := a.linkPose(-1).Pos
		for i := range a.spec.Links {
			next := a.linkPose(i).Pos
			out = append(out,
				drawable{a: prev, b: next, radius: linkRadius, color: armColor, line: true},
				drawable{a: next, radius: linkRadius * 0.6, color: jointColor},
			)
			prev = next
		}
	}
	return out
}

func entityColor(spec EntitySpec) color.Color {
	if spec.Color != nil {
		return spec.Color
	}
	h := fnv.New32a()
	h.Write([]byte(spec.Name))
	v := h.Sum32()
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}
}

type renderer struct {
	width, height int
	fov           float64
	pose          geom.Pose
	depth         bool
}

type projected struct {
	d      drawable
	x0, y0 float64
	x1, y1 float64
	r      float64
	z      float64
}

func (r renderer) focal() float64 {
	return float64(r.height) / 2 / math.Tan(r.fov*math.Pi/360)
}

// project maps a world point to pixel coordinates. The camera looks along its
// local -Z axis with +Y up.
func (r renderer) project(p geom.Vec3, view geom.Pose) (x, y, z float64, ok bool) {
	c := view.Apply(p)
	z = -c[2]
	if z <= nearPlane {
		return 0, 0, 0, false
	}
	f := r.focal()
	x = float64(r.width)/2 + f*c[0]/z
	y = float64(r.height)/2 - f*c[1]/z
	return x, y, z, true
}

func (r renderer) draw(items []drawable) Frame {
	view := r.pose.Inverse()
	f := r.focal()

	visible := make([]projected, 0, len(items))
	for _, d := range items {
		x0, y0, z0, ok := r.project(d.a, view)
		if !ok {
			continue
		}
		p := projected{d: d, x0: x0, y0: y0, x1: x0, y1: y0, z: z0}
		if d.line {
			x1, y1, z1, ok := r.project(d.b, view)
			if !ok {
				continue
			}
			p.x1, p.y1 = x1, y1
			p.z = (z0 + z1) / 2
		}
		p.r = f * d.radius / p.z
		visible = append(visible, p)
	}

	// far to near
	sort.SliceStable(visible, func(i, j int) bool { return visible[i].z > visible[j].z })

	img := image.NewRGBA(image.Rect(0, 0, r.width, r.height))
	dc := gg.NewContextForRGBA(img)
	dc.SetColor(background)
	dc.Clear()
	dc.SetLineCapRound()
	for _, p := range visible {
		dc.SetColor(p.d.color)
		if p.d.line {
			dc.SetLineWidth(2 * p.r)
			dc.DrawLine(p.x0, p.y0, p.x1, p.y1)
			dc.Stroke()
			continue
		}
		dc.DrawCircle(p.x0, p.y0, p.r)
		dc.Fill()
	}

	frame := Frame{Color: img}
	if r.depth {
		frame.Depth = r.depthImage(visible)
	}
	return frame
}

func (r renderer) depthImage(visible []projected) *image.Gray16 {
	img := image.NewGray16(image.Rect(0, 0, r.width, r.height))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	for _, p := range visible {
		v := uint16(math.Min(p.z*depthScale, math.MaxUint16))
		if !p.d.line {
			fillDisc(img, p.x0, p.y0, p.r, v)
			continue
		}
		n := int(math.Hypot(p.x1-p.x0, p.y1-p.y0)/math.Max(p.r, 1)) + 1
		for k := 0; k <= n; k++ {
			t := float64(k) / float64(n)
			fillDisc(img, p.x0+t*(p.x1-p.x0), p.y0+t*(p.y1-p.y0), p.r, v)
		}
	}
	return img
}

// fillDisc writes v where it is nearer than the stored depth.
func fillDisc(img *image.Gray16, cx, cy, r float64, v uint16) {
	b := img.Bounds()
	x0 := int(math.Max(math.Floor(cx-r), float64(b.Min.X)))
	x1 := int(math.Min(math.Ceil(cx+r), float64(b.Max.X-1)))
	y0 := int(math.Max(math.Floor(cy-r), float64(b.Min.Y)))
	y1 := int(math.Min(math.Ceil(cy+r), float64(b.Max.Y-1)))
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			dx, dy := float64(x)+0.5-cx, float64(y)+0.5-cy
			if dx*dx+dy*dy > r*r {
				continue
			}
			if img.Gray16At(x, y).Y > v {
				img.SetGray16(x, y, color.Gray16{Y: v})
			}
		}
	}
}
