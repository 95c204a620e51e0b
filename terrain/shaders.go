package terrain

import _ "embed"

// WGSL sources of the stage pipelines. Binding i of group 0 is slot i; the
// parameter block follows the last slot.
var (
	//go:embed shaders/creation.wgsl
	creationWGSL string
	//go:embed shaders/update.wgsl
	updateWGSL string
	//go:embed shaders/flow.wgsl
	flowWGSL string
	//go:embed shaders/render.wgsl
	renderWGSL string
)

// ShaderSources returns the embedded WGSL by pipeline label.
func ShaderSources() map[string]string {
	return map[string]string{
		"tile_creation": creationWGSL,
		"tile_update":   updateWGSL,
		"tile_flow":     flowWGSL,
		"tile_render":   renderWGSL,
	}
}
