package compositor

// fitRect computes the destination rectangle (in surface pixels) a source
// of size (srcW, srcH) should be drawn into given a layer's target box
// (boxW, boxH) and fit mode (spec.md GLOSSARY "Fit mode"). FitAuto resolves
// to FitContain, matching the spec's stated default.
func fitRect(srcW, srcH, boxW, boxH float64, mode FitMode) (x, y, w, h float64) {
	if srcW <= 0 || srcH <= 0 || boxW <= 0 || boxH <= 0 {
		return 0, 0, boxW, boxH
	}
	if mode == FitAuto {
		mode = FitContain
	}

	switch mode {
	case FitFill:
		return 0, 0, boxW, boxH

	case FitCover:
		scale := max(boxW/srcW, boxH/srcH)
		w, h = srcW*scale, srcH*scale
		x, y = (boxW-w)/2, (boxH-h)/2
		return x, y, w, h

	case FitContain:
		fallthrough
	default:
		scale := min(boxW/srcW, boxH/srcH)
		w, h = srcW*scale, srcH*scale
		x, y = (boxW-w)/2, (boxH-h)/2
		return x, y, w, h
	}
}
