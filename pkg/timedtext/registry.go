package timedtext

// PenRegistry assigns dense pen ids to colors in first-seen order. Ids start
// at 0 and are never reassigned.
type PenRegistry struct {
	ids  map[string]int
	pens []Pen
}

// NewPenRegistry returns an empty registry.
func NewPenRegistry() *PenRegistry {
	return &PenRegistry{ids: make(map[string]int)}
}

// IDOf returns the pen id of a #RRGGBB color, allocating the next id the
// first time the color is seen.
func (r *PenRegistry) IDOf(color string) int {
	if id, ok := r.ids[color]; ok {
		return id
	}
	id := len(r.pens)
	r.ids[color] = id
	r.pens = append(r.pens, Pen{ID: id, Color: color})
	return id
}

// Lookup returns the id of an already registered color.
func (r *PenRegistry) Lookup(color string) (int, bool) {
	id, ok := r.ids[color]
	return id, ok
}

// Len returns the number of registered pens.
func (r *PenRegistry) Len() int { return len(r.pens) }

// Pens returns the registered pens in id order.
func (r *PenRegistry) Pens() []Pen {
	return append([]Pen(nil), r.pens...)
}
