// Package utils holds small helpers shared by the wire models.
package utils

// Ptr returns a pointer to a copy of v, for optional response fields.
func Ptr[T any](v T) *T {
	return &v
}

// Deref returns *p, or the zero value when p is nil.
func Deref[T any](p *T) (v T) {
	if p != nil {
		v = *p
	}
	return v
}
