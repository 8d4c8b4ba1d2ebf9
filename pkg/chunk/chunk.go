// Package chunk splits slices into bounded batches.
package chunk

// Slice splits s into consecutive chunks of at most n elements each.
// The final chunk carries the remainder. A non-positive n returns the
// input as a single chunk; an empty or nil slice returns nil.
//
// Chunks share backing storage with s and must not be appended to.
func Slice[T any](s []T, n int) [][]T {
	if len(s) == 0 {
		return nil
	}
	if n <= 0 {
		return [][]T{s}
	}
	out := make([][]T, 0, (len(s)+n-1)/n)
	for len(s) > n {
		out = append(out, s[:n:n])
		s = s[n:]
	}
	return append(out, s)
}
