package compositor

import (
	"context"
	"testing"
)

func TestVideoSourceSequentialAdvanceDoesNotReseek(t *testing.T) {
	iter := newFakeVideoIterator(100, 1.0/30)
	vs, err := newVideoSource(iter, nil)
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	if _, err := vs.getFrameAt(ctx, 0); err != nil {
		t.Fatal(err)
	}
	if _, err := vs.getFrameAt(ctx, 0.1); err != nil {
		t.Fatal(err)
	}
	if iter.seekCalls != 0 {
		t.Fatalf("sequential forward advance should never reseek, got %d seeks", iter.seekCalls)
	}
}

func TestVideoSourceReseeksPastThreshold(t *testing.T) {
	iter := newFakeVideoIterator(1000, 1.0/30)
	vs, err := newVideoSource(iter, nil)
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	if _, err := vs.getFrameAt(ctx, 0); err != nil {
		t.Fatal(err)
	}
	// Jump forward well past reseekThreshold (0.75s).
	if _, err := vs.getFrameAt(ctx, 10.0); err != nil {
		t.Fatal(err)
	}
	if iter.seekCalls != 1 {
		t.Fatalf("expected exactly one reseek for a jump past the threshold, got %d", iter.seekCalls)
	}
}

func TestVideoSourceReseeksOnBackwardSeek(t *testing.T) {
	iter := newFakeVideoIterator(1000, 1.0/30)
	vs, err := newVideoSource(iter, nil)
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	if _, err := vs.getFrameAt(ctx, 5.0); err != nil {
		t.Fatal(err)
	}
	if _, err := vs.getFrameAt(ctx, 1.0); err != nil {
		t.Fatal(err)
	}
	if iter.seekCalls == 0 {
		t.Fatalf("expected a reseek for any backward jump")
	}
}

func TestVideoSourceClampsOutOfRangeTime(t *testing.T) {
	iter := newFakeVideoIterator(30, 1.0/30) // ~1s of content
	vs, err := newVideoSource(iter, nil)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	f, err := vs.getFrameAt(ctx, 1000)
	if err != nil {
		t.Fatalf("out-of-range sourceTime should clamp, not error: %v", err)
	}
	if f == nil {
		t.Fatalf("expected a frame even for an out-of-range request")
	}
}
