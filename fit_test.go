package compositor

import "testing"

func TestFitRectContain(t *testing.T) {
	x, y, w, h := fitRect(1920, 1080, 800, 800, FitContain)
	if w != 800 || h != 450 {
		t.Fatalf("contain: got w=%v h=%v, want 800x450", w, h)
	}
	if x != 0 || y != 175 {
		t.Fatalf("contain: got x=%v y=%v, want centered at 0,175", x, y)
	}
}

func TestFitRectCover(t *testing.T) {
	_, _, w, h := fitRect(1920, 1080, 800, 800, FitCover)
	if h != 800 {
		t.Fatalf("cover: expected h to fill box, got %v", h)
	}
	if w < 1422 || w > 1423 {
		t.Fatalf("cover width out of expected range: %v", w)
	}
}

func TestFitRectFill(t *testing.T) {
	x, y, w, h := fitRect(1920, 1080, 800, 600, FitFill)
	if x != 0 || y != 0 || w != 800 || h != 600 {
		t.Fatalf("fill should exactly match box, got %v %v %v %v", x, y, w, h)
	}
}

func TestFitRectAutoDefersToContain(t *testing.T) {
	xa, ya, wa, ha := fitRect(1920, 1080, 800, 800, FitAuto)
	xc, yc, wc, hc := fitRect(1920, 1080, 800, 800, FitContain)
	if xa != xc || ya != yc || wa != wc || ha != hc {
		t.Fatalf("FitAuto should equal FitContain")
	}
}

func TestFitRectZeroSourceIsSafe(t *testing.T) {
	x, y, w, h := fitRect(0, 0, 800, 600, FitContain)
	if x != 0 || y != 0 || w != 800 || h != 600 {
		t.Fatalf("zero source dims should fall back to the box unchanged")
	}
}
