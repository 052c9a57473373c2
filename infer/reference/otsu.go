package reference

// otsuThreshold returns the luma level maximizing between-class variance
// of a 256-bin histogram.
func otsuThreshold(hist *[256]int, total int) int {
	if total == 0 {
		return 128
	}

	sum := 0.0
	for i, n := range hist {
		sum += float64(i * n)
	}

	var sumB, maxVar float64
	var weightB int
	best := 255
	for t := 0; t < 256; t++ {
		weightB += hist[t]
		if weightB == 0 {
			continue
		}
		weightF := total - weightB
		if weightF == 0 {
			break
		}
		sumB += float64(t * hist[t])
		meanB := sumB / float64(weightB)
		meanF := (sum - sumB) / float64(weightF)
		between := float64(weightB) * float64(weightF) * (meanB - meanF) * (meanB - meanF)
		if between > maxVar {
			maxVar = between
			best = t
		}
	}
	return best
}
