// Package inference runs preprocessed tensors through the model and reduces the output to a digit.
package inference

// Engine is one loaded instance of the model. Bind, Invoke and Output share the
// instance's working buffers, so an Engine must never be used by two callers at once;
// Pool hands engines out exclusively.
type Engine interface {
	InputShape() []int64
	Bind(input []float32) error
	Invoke() error
	Output() []float32
	Close() error
}
