package client

// PaletteSize is the number of recent-colour slots.
const PaletteSize = 10

var defaultPalette = []string{"#e74c3c", "#f1c40f", "#2ecc71", "#3498db", "#9b59b6"}

// Palette keeps recently used colours, most recent first.
type Palette struct {
	colors []string
}

// NewPalette returns a palette seeded with the default colours.
func NewPalette() *Palette {
	p := &Palette{colors: make([]string, 0, PaletteSize)}
	p.colors = append(p.colors, defaultPalette...)
	return p
}

// Add moves c to the front, evicting the oldest colour when full.
func (p *Palette) Add(c string) {
	for i, existing := range p.colors {
		if existing == c {
			p.colors = append(p.colors[:i], p.colors[i+1:]...)
			break
		}
	}
	if len(p.colors) == PaletteSize {
		p.colors = p.colors[:PaletteSize-1]
	}
	p.colors = append([]string{c}, p.colors...)
}

// Colors returns the palette, most recent first.
func (p *Palette) Colors() []string {
	out := make([]string, len(p.colors))
	copy(out, p.colors)
	return out
}
