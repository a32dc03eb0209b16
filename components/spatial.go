package components

// Position represents a slot's centre in container coordinates.
type Position struct {
	X, Y float32
}

// Cell pins an entity to its row-major slot index.
// The index never changes once the grid is built.
type Cell struct {
	Index int
}
