package dataset

// BuildSequences converts a flat feature/target table into fixed-length
// sliding windows for next-step supervised learning. For start index i in
// [0, N-L): window i = rows [i, i+L) and target i = targets[i+L], the
// value immediately after the window. N <= L produces zero windows; the
// caller decides whether that is an error.
func BuildSequences(rows [][]float64, targets []float64, length int) ([][][]float64, []float64) {
	n := len(rows)
	if length <= 0 || n <= length {
		return nil, nil
	}
	windows := make([][][]float64, 0, n-length)
	windowTargets := make([]float64, 0, n-length)
	for i := 0; i+length < n; i++ {
		windows = append(windows, rows[i:i+length])
		windowTargets = append(windowTargets, targets[i+length])
	}
	return windows, windowTargets
}
