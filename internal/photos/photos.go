// Package photos steps through the photo gallery.
package photos

// Step moves index by delta within a gallery of n photos, wrapping at both ends.
// An empty gallery always yields -1.
func Step(index, delta, n int) int {
	if n <= 0 {
		return -1
	}
	if index < 0 || index >= n {
		index = 0
		if delta > 0 {
			delta--
		}
	}
	return ((index+delta)%n + n) % n
}
