package terrain

import (
	"image/color"
	"math"

	"github.com/pthm-cable/terrastream/gpu"
)

// Host implementations of the stages, run by the soft backend. The WGSL in
// shaders/ mirrors them for device backends.

// soil/water texel channels
const (
	chSoil  = 0
	chWater = 1
	chRock  = 2
)

// minFlowDepth keeps speed estimates finite on dry texels.
const minFlowDepth = 1e-4

// texelWorld returns the world position of a texel centre in float64.
func texelWorld(p *UpdateParams, x, y int) (float64, float64) {
	ox := float64(p.WorldMin[0]) + float64(p.WorldMinLo[0])
	oy := float64(p.WorldMin[1]) + float64(p.WorldMinLo[1])
	return ox + (float64(x)+0.5)*float64(p.RangePerPixel),
		oy + (float64(y)+0.5)*float64(p.RangePerPixel)
}

func creationKernel(noise *NoiseField) gpu.Kernel {
	return func(g *gpu.Group) {
		p, err := decodeUpdateParams(g.Params)
		if err != nil {
			return
		}
		rock := g.View(creationRock)
		sw := g.View(creationSoilWater)
		anc := g.View(creationAncillary)
		flow := g.View(creationFlow)

		for y := g.Y0; y < g.Y1; y++ {
			for x := g.X0; x < g.X1; x++ {
				wx, wy := texelWorld(&p, x, y)
				h01 := noise.Height(wx, wy)
				h := float32(h01) * p.HeightScale
				moisture := float32(noise.Moisture(wx, wy))

				rock.Set(x, y, 0, h)

				t := sw.Texel(x, y)
				t[chSoil] = moisture * 0.5
				// Valleys start wetter than ridges.
				t[chWater] = p.InitialWater * float32(1-h01)
				t[chRock] = h
				t[3] = 0

				a := anc.Texel(x, y)
				a[0] = moisture
				a[1] = float32(noise.FBM(wx*4, wy*4))
				a[2] = float32(materialFor(h01, float64(moisture)))
				a[3] = float32(p.Seed&0xffff) / 65535

				// A recycled block still holds the previous tile's flow.
				f := flow.Texel(x, y)
				f[0], f[1], f[2], f[3] = 0, 0, 0, 0
			}
		}
	}
}

// materialFor classifies a texel: 0 sand, 1 grass, 2 rock, 3 snow.
func materialFor(height, moisture float64) int {
	switch {
	case height < 0.3:
		return 0
	case height > 0.8:
		return 3
	case height > 0.6 || moisture < 0.2:
		return 2
	default:
		return 1
	}
}

func updateKernel(g *gpu.Group) {
	p, err := decodeUpdateParams(g.Params)
	if err != nil {
		return
	}
	rock := g.View(updateRock)
	flow := g.View(updateFlow)
	sw := g.View(updateSoilWater)
	normal := g.View(updateNormal)

	dt := p.DeltaT
	inv2 := 1 / (2 * p.RangePerPixel)

	for y := g.Y0; y < g.Y1; y++ {
		for x := g.X0; x < g.X1; x++ {
			t := sw.Texel(x, y)
			soil, water := t[chSoil], t[chWater]

			water += p.Rain * dt
			water -= water * min(p.Evaporation*dt, 1)
			seep := min(water, p.Seepage*dt*(1-soil))
			water -= seep
			soil = min(soil+seep, 1)

			t[chSoil] = soil
			t[chWater] = max(water, 0)

			dx := (rock.Clamp(x+1, y, 0) - rock.Clamp(x-1, y, 0)) * inv2
			dy := (rock.Clamp(x, y+1, 0) - rock.Clamp(x, y-1, 0)) * inv2
			f := flow.Texel(x, y)
			nx := -dx - f[0]*p.FlowSpeedFactor
			ny := -dy - f[1]*p.FlowSpeedFactor
			nz := float32(1)
			l := float32(math.Sqrt(float64(nx*nx + ny*ny + nz*nz)))

			n := normal.Texel(x, y)
			n[0], n[1], n[2] = nx/l, ny/l, nz/l
			n[3] = min(f[2]*0.1, 1)
		}
	}
}

// flowKernel moves water between texels with a pipe model. Each pair of
// adjacent texels exchanges flux_ij = clamp(k*(H_i-H_j), -w_j/4, w_i/4),
// which is antisymmetric, so total water is conserved and depth never goes
// negative. Unlinked tile edges are closed.
func flowKernel(g *gpu.Group) {
	p, err := decodeUpdateParams(g.Params)
	if err != nil {
		return
	}
	src := g.View(flowSrc)
	dst := g.View(flowDst)
	out := g.View(flowOut)
	var nbr [4]gpu.View
	for i := range nbr {
		nbr[i] = g.View(flowNeighbor0 + i)
	}

	n := src.Width
	k := p.FlowRate * p.DeltaT / p.RangePerPixel

	// sample returns water and surface height of the texel one step away
	// in direction dir, crossing into the neighbor tile at the edge.
	sample := func(x, y, dir int) (w, h float32, ok bool) {
		switch dir {
		case NegX:
			x--
		case PosX:
			x++
		case NegY:
			y--
		case PosY:
			y++
		}
		v := src
		switch {
		case x < 0:
			v, x = nbr[NegX], n-1
		case x >= n:
			v, x = nbr[PosX], 0
		case y < 0:
			v, y = nbr[NegY], n-1
		case y >= n:
			v, y = nbr[PosY], 0
		}
		if v.Data == nil {
			return 0, 0, false
		}
		t := v.Texel(x, y)
		return t[chWater], t[chWater] + t[chRock], true
	}

	for y := g.Y0; y < g.Y1; y++ {
		for x := g.X0; x < g.X1; x++ {
			t := src.Texel(x, y)
			wi := t[chWater]
			hi := wi + t[chRock]

			var flux [4]float32
			var net float32
			for dir := 0; dir < 4; dir++ {
				edge := (dir == NegX && x == 0) || (dir == PosX && x == n-1) ||
					(dir == NegY && y == 0) || (dir == PosY && y == n-1)
				if edge && p.NeighborMask&(1<<dir) == 0 {
					continue
				}
				wj, hj, ok := sample(x, y, dir)
				if !ok {
					continue
				}
				f := k * (hi - hj)
				f = max(min(f, wi/4), -wj/4)
				flux[dir] = f
				net += f
			}

			d := dst.Texel(x, y)
			d[chSoil] = t[chSoil]
			d[chWater] = max(wi-net, 0)
			d[chRock] = t[chRock]
			d[3] = t[3]

			fx := (flux[PosX] - flux[NegX]) / 2
			fy := (flux[PosY] - flux[NegY]) / 2
			o := out.Texel(x, y)
			o[0], o[1] = fx, fy
			o[2] = float32(math.Hypot(float64(fx), float64(fy))) / max(wi, minFlowDepth)
			o[3] = net
		}
	}
}

// Terrain palette by material index.
var palette = [4]color.RGBA{
	{R: 194, G: 178, B: 128, A: 255},
	{R: 86, G: 140, B: 62, A: 255},
	{R: 120, G: 112, B: 104, A: 255},
	{R: 236, G: 240, B: 244, A: 255},
}

var waterColor = color.RGBA{R: 38, G: 92, B: 170, A: 255}

// shadeTile rasterises one tile top-down into the colour target.
func shadeTile(d *gpu.DrawContext) {
	p, err := decodeDrawParams(d.Params)
	if err != nil {
		return
	}
	target := d.Target
	tw, th := target.Rect.Dx(), target.Rect.Dy()

	toPx := func(wx, wy float32) (float32, float32) {
		return (wx - p.WorldMin[0]) * p.InvWorldRange[0] * float32(tw),
			(wy - p.WorldMin[1]) * p.InvWorldRange[1] * float32(th)
	}
	x0f, y0f := toPx(p.Min[0], p.Min[1])
	x1f, y1f := toPx(p.Min[0]+p.Range[0], p.Min[1]+p.Range[1])
	x0 := max(int(math.Floor(float64(x0f))), 0)
	y0 := max(int(math.Floor(float64(y0f))), 0)
	x1 := min(int(math.Ceil(float64(x1f))), tw)
	y1 := min(int(math.Ceil(float64(y1f))), th)
	if x0 >= x1 || y0 >= y1 {
		return
	}

	rock := d.View(renderRock)
	sw := d.View(renderSoilWater)
	anc := d.View(renderAncillary)
	normal := d.View(renderNormal)
	n := rock.Width
	seg := float32(p.SegmentCount)

	// Light from the upper left.
	lx, ly, lz := float32(-0.4), float32(-0.4), float32(0.82)

	for py := y0; py < y1; py++ {
		v := (float32(py) + 0.5 - y0f) / (y1f - y0f)
		for px := x0; px < x1; px++ {
			u := (float32(px) + 0.5 - x0f) / (x1f - x0f)
			if u < 0 || u >= 1 || v < 0 || v >= 1 {
				continue
			}
			// Snap to the mesh vertex grid, then to a texel.
			us := float32(math.Floor(float64(u*seg))) / seg
			vs := float32(math.Floor(float64(v*seg))) / seg
			tx := min(int(us*float32(n)), n-1)
			ty := min(int(vs*float32(n)), n-1)

			h := rock.At(tx, ty, 0) / max(p.HeightScale, 1)
			water := sw.At(tx, ty, chWater)
			mat := int(anc.At(tx, ty, 2))
			if mat < 0 || mat >= len(palette) {
				mat = 1
			}
			nt := normal.Texel(tx, ty)
			shade := max(nt[0]*lx+nt[1]*ly+nt[2]*lz, 0.2)

			c := palette[mat]
			r, gr, b := float32(c.R), float32(c.G), float32(c.B)
			if water > 0.05 {
				a := min(water*2, 0.85)
				r = r*(1-a) + float32(waterColor.R)*a
				gr = gr*(1-a) + float32(waterColor.G)*a
				b = b*(1-a) + float32(waterColor.B)*a
			}
			lum := shade * (0.7 + 0.3*h)

			i := target.PixOffset(px, py)
			target.Pix[i+0] = uint8(min(r*lum, 255))
			target.Pix[i+1] = uint8(min(gr*lum, 255))
			target.Pix[i+2] = uint8(min(b*lum, 255))
			target.Pix[i+3] = 255
		}
	}
}
