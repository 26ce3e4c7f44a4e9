package wave

// fibOffsets are the forward candle offsets for the time-axis reference
// lines, counted from the wave start pivot.
var fibOffsets = [...]int{5, 8, 13, 21, 34, 55, 89, 144, 233, 377}

// TimeMarks returns the absolute candle indices at Fibonacci offsets forward
// of the wave start. Positions are purely positional and may extend past the
// end of the current data; the renderer decides which fall on canvas.
func TimeMarks(startIndex int) []int {
	marks := make([]int, len(fibOffsets))
	for i, off := range fibOffsets {
		marks[i] = startIndex + off
	}
	return marks
}
