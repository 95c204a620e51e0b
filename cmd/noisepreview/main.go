// Terrain noise preview tool - interactive height field with sliders.
//
// Usage: go run ./cmd/noisepreview [-config config.yaml]
package main

import (
	"flag"
	"fmt"
	"image/color"
	"log"

	gui "github.com/gen2brain/raylib-go/raygui"
	rl "github.com/gen2brain/raylib-go/raylib"
	"gopkg.in/yaml.v3"

	"github.com/pthm-cable/terrastream/config"
	"github.com/pthm-cable/terrastream/terrain"
)

const (
	windowWidth  = 1000
	windowHeight = 720
	previewSize  = 512
	panelWidth   = windowWidth - previewSize - 30
	gridSize     = 256
)

func main() {
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	initial := cfg.Noise
	params := initial
	// World units covered by the preview: the cache window.
	span := float32(float64(cfg.Derived.CacheSide) * cfg.Terrain.TileSize)
	var originX, originY float64

	rl.InitWindow(windowWidth, windowHeight, "Terrain Noise Preview")
	defer rl.CloseWindow()
	rl.SetTargetFPS(30)

	heights := make([]float32, gridSize*gridSize)
	img := rl.GenImageColor(gridSize, gridSize, rl.Black)
	texture := rl.LoadTextureFromImage(img)
	rl.UnloadImage(img)
	defer rl.UnloadTexture(texture)

	showWater := true
	needsRegen := true

	for !rl.WindowShouldClose() {
		if needsRegen {
			generateHeights(heights, params, originX, originY, float64(span))
			updateTexture(texture, heights, cfg.Terrain.TileSize/float64(span)*gridSize, showWater)
			needsRegen = false
		}

		// Arrow keys scroll the preview by a quarter span.
		step := float64(span) / 4
		for key, d := range map[int32][2]float64{
			rl.KeyLeft: {-step, 0}, rl.KeyRight: {step, 0}, rl.KeyUp: {0, -step}, rl.KeyDown: {0, step},
		} {
			if rl.IsKeyPressed(key) {
				originX += d[0]
				originY += d[1]
				needsRegen = true
			}
		}

		rl.BeginDrawing()
		rl.ClearBackground(rl.RayWhite)

		rl.DrawTexturePro(
			texture,
			rl.Rectangle{X: 0, Y: 0, Width: gridSize, Height: gridSize},
			rl.Rectangle{X: 10, Y: 10, Width: previewSize, Height: previewSize},
			rl.Vector2{X: 0, Y: 0},
			0,
			rl.White,
		)
		rl.DrawRectangleLines(10, 10, previewSize, previewSize, rl.DarkGray)

		lo, hi, mean := summarize(heights)
		statsY := int32(previewSize + 25)
		rl.DrawText(fmt.Sprintf("Min: %.3f  Max: %.3f  Avg: %.3f", lo, hi, mean), 15, statsY, 16, rl.DarkGray)
		rl.DrawText(fmt.Sprintf("Origin: (%.0f, %.0f)  Span: %.0f", originX, originY, span), 15, statsY+20, 16, rl.DarkGray)

		panelX := float32(previewSize + 20)
		panelY := float32(10)
		rl.DrawText("Terrain Noise Parameters", int32(panelX), int32(panelY), 20, rl.DarkGray)
		panelY += 35

		sliders := []struct {
			label    string
			lo, hi   float32
			value    *float64
			integral bool
		}{
			{"Scale (world units per period)", 50, 4000, &params.Scale, false},
			{"Lacunarity", 1.2, 4, &params.Lacunarity, false},
			{"Gain", 0.1, 0.9, &params.Gain, false},
			{"Ridge (0 = hills, 1 = ridges)", 0, 1, &params.Ridge, false},
		}
		for _, s := range sliders {
			rl.DrawText(s.label, int32(panelX), int32(panelY), 14, rl.Gray)
			panelY += 18
			nv := gui.SliderBar(
				rl.Rectangle{X: panelX, Y: panelY, Width: float32(panelWidth - 80), Height: 20},
				"", "",
				float32(*s.value), s.lo, s.hi,
			)
			rl.DrawText(fmt.Sprintf("%.2f", *s.value), int32(panelX+float32(panelWidth-70)), int32(panelY+2), 16, rl.DarkGray)
			if nv != float32(*s.value) {
				*s.value = float64(nv)
				needsRegen = true
			}
			panelY += 35
		}

		rl.DrawText("Octaves (FBM detail level)", int32(panelX), int32(panelY), 14, rl.Gray)
		panelY += 18
		octaves := gui.SliderBar(
			rl.Rectangle{X: panelX, Y: panelY, Width: float32(panelWidth - 80), Height: 20},
			"1", "8",
			float32(params.Octaves), 1, 8,
		)
		rl.DrawText(fmt.Sprintf("%d", params.Octaves), int32(panelX+float32(panelWidth-70)), int32(panelY+2), 16, rl.DarkGray)
		if int(octaves+0.5) != params.Octaves {
			params.Octaves = int(octaves + 0.5)
			needsRegen = true
		}
		panelY += 45

		if gui.Button(rl.Rectangle{X: panelX, Y: panelY, Width: 120, Height: 30}, "Basis: "+params.Basis) {
			if params.Basis == "perlin" {
				params.Basis = "simplex"
			} else {
				params.Basis = "perlin"
			}
			needsRegen = true
		}
		if gui.Button(rl.Rectangle{X: panelX + 130, Y: panelY, Width: 120, Height: 30}, toggleText(showWater, "Hide water", "Show water")) {
			showWater = !showWater
			needsRegen = true
		}
		panelY += 45

		if gui.Button(rl.Rectangle{X: panelX, Y: panelY, Width: 120, Height: 30}, "Random Seed") {
			params.Seed = int64(rl.GetRandomValue(0, 99999))
			needsRegen = true
		}
		if gui.Button(rl.Rectangle{X: panelX + 130, Y: panelY, Width: 120, Height: 30}, "Reset All") {
			params = initial
			originX, originY = 0, 0
			needsRegen = true
		}
		panelY += 55

		rl.DrawText("YAML Config:", int32(panelX), int32(panelY), 16, rl.DarkGray)
		panelY += 25
		out := noiseYAML(params)
		for _, line := range splitLines(out) {
			rl.DrawText(line, int32(panelX), int32(panelY), 14, rl.Gray)
			panelY += 16
		}

		rl.DrawText("Press C to copy YAML to clipboard, arrows to scroll", int32(panelX), int32(windowHeight-30), 12, rl.LightGray)
		if rl.IsKeyPressed(rl.KeyC) {
			rl.SetClipboardText(out)
		}

		rl.EndDrawing()
	}
}

func toggleText(cond bool, ifTrue, ifFalse string) string {
	if cond {
		return ifTrue
	}
	return ifFalse
}

// generateHeights samples the terrain height field over a span×span square
// centred on (ox, oy).
func generateHeights(dst []float32, params config.NoiseConfig, ox, oy, span float64) {
	field := terrain.NewNoiseField(params)
	for y := 0; y < gridSize; y++ {
		wy := oy + ((float64(y)+0.5)/gridSize-0.5)*span
		for x := 0; x < gridSize; x++ {
			wx := ox + ((float64(x)+0.5)/gridSize-0.5)*span
			dst[y*gridSize+x] = float32(field.Height(wx, wy))
		}
	}
}

func summarize(h []float32) (lo, hi, mean float32) {
	lo, hi = 1, 0
	var sum float32
	for _, v := range h {
		lo = min(lo, v)
		hi = max(hi, v)
		sum += v
	}
	return lo, hi, sum / float32(len(h))
}

// noiseYAML renders the parameters as a config fragment.
func noiseYAML(params config.NoiseConfig) string {
	out, err := yaml.Marshal(map[string]config.NoiseConfig{"noise": params})
	if err != nil {
		return err.Error()
	}
	return string(out)
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}

// updateTexture colours heights in sea, lowland, highland and snow bands
// and darkens tile edges every tilePx pixels.
func updateTexture(texture rl.Texture2D, heights []float32, tilePx float64, water bool) {
	pixels := make([]color.RGBA, gridSize*gridSize)
	for i, v := range heights {
		var r, g, b float32
		switch {
		case water && v < 0.3:
			t := v / 0.3
			r, g, b = 20+t*30, 50+t*60, 110+t*80
		case v < 0.6:
			t := (v - 0.3) / 0.3
			r, g, b = 70+t*60, 130-t*20, 60+t*20
		case v < 0.8:
			t := (v - 0.6) / 0.2
			r, g, b = 130-t*10, 112, 80+t*24
		default:
			t := (v - 0.8) / 0.2
			r, g, b = 200+t*36, 205+t*35, 210+t*34
		}
		x, y := i%gridSize, i/gridSize
		if tilePx >= 4 && (int(float64(x)/tilePx) != int(float64(x+1)/tilePx) || int(float64(y)/tilePx) != int(float64(y+1)/tilePx)) {
			r, g, b = r*0.7, g*0.7, b*0.7
		}
		pixels[i] = color.RGBA{R: uint8(min(r, 255)), G: uint8(min(g, 255)), B: uint8(min(b, 255)), A: 255}
	}
	rl.UpdateTexture(texture, pixels)
}
