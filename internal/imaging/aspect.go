package imaging

// DetectAspectRatio picks the supported ratio nearest to width/height using
// fixed thresholds, e.g. 1024x768 (1.33) lands in 4:3.
func DetectAspectRatio(width, height int) string {
	if width <= 0 || height <= 0 {
		return "1:1"
	}
	r := float64(width) / float64(height)
	switch {
	case r > 1.7:
		return "16:9"
	case r > 1.4:
		return "3:2"
	case r > 1.2:
		return "4:3"
	case r > 0.8:
		return "1:1"
	case r > 0.7:
		return "3:4"
	case r > 0.6:
		return "2:3"
	default:
		return "9:16"
	}
}
