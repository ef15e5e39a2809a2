// Package features builds the engineered feature vectors the classifier
// consumes. Building is pure and total: every input is coerced, never
// rejected, and the same input always yields the same vector.
package features

// Vector is an ordered name-to-value feature mapping. Insertion order is
// preserved for stable serialization and debugging; lookups are by name,
// so consumers are never positional.
type Vector struct {
	names  []string
	values map[string]float64
}

// NewVector returns an empty vector.
func NewVector() *Vector {
	return &Vector{values: make(map[string]float64)}
}

// Set stores a feature value. Setting an existing name overwrites the
// value but keeps its original position.
func (v *Vector) Set(name string, value float64) {
	if _, ok := v.values[name]; !ok {
		v.names = append(v.names, name)
	}
	v.values[name] = value
}

// Get returns the value for name and whether it is present.
func (v *Vector) Get(name string) (float64, bool) {
	val, ok := v.values[name]
	return val, ok
}

// Value returns the value for name, or 0 when absent. Missing features
// defaulting to zero is the projection rule the classifier relies on.
func (v *Vector) Value(name string) float64 {
	return v.values[name]
}

// Names returns the feature names in insertion order.
func (v *Vector) Names() []string {
	out := make([]string, len(v.names))
	copy(out, v.names)
	return out
}

// Len returns the number of features.
func (v *Vector) Len() int {
	return len(v.names)
}
