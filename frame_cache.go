package compositor

import lru "github.com/hashicorp/golang-lru/v2"

// frameCacheCapacity tiers decoded-frame storage by source resolution
// (spec.md §3 Frame Cache: "capacity scales inversely with resolution").
func frameCacheCapacity(width, height int) int {
	px := width * height
	switch {
	case px >= 1920*1080:
		return 15
	case px >= 1280*720:
		return 30
	default:
		return 60
	}
}

// frameCache is the decoded-frame LRU keyed on a quantized timestamp, so
// repeated getFrameAt calls within the same frame interval hit without
// re-decoding (spec.md §3/§4.1). One instance per VideoSource.
type frameCache struct {
	cache          *lru.Cache[int64, *DecodedFrame]
	frameInterval  float64 // seconds; quantization bucket width
	m              *metrics
}

func newFrameCache(width, height int, frameIntervalSeconds float64, m *metrics) (*frameCache, error) {
	capacity := frameCacheCapacity(width, height)
	c, err := lru.New[int64, *DecodedFrame](capacity)
	if err != nil {
		return nil, newError(UnknownError, "newFrameCache", "failed to allocate LRU", err)
	}
	if frameIntervalSeconds <= 0 {
		frameIntervalSeconds = float64(defaultFrameIntervalMillis) / 1000
	}
	return &frameCache{cache: c, frameInterval: frameIntervalSeconds, m: m}, nil
}

// key quantizes a source-time to the frame-interval bucket it falls in, so
// "0.501s" and "0.517s" share a cache entry at 30fps (spec.md §3).
func (c *frameCache) key(sourceTime float64) int64 {
	return int64(sourceTime / c.frameInterval)
}

func (c *frameCache) get(sourceTime float64) (*DecodedFrame, bool) {
	f, ok := c.cache.Get(c.key(sourceTime))
	if c.m != nil {
		if ok {
			c.m.cacheHits.Inc()
		} else {
			c.m.cacheMisses.Inc()
		}
	}
	return f, ok
}

func (c *frameCache) put(sourceTime float64, frame *DecodedFrame) {
	c.cache.Add(c.key(sourceTime), frame)
}

func (c *frameCache) purge() {
	c.cache.Purge()
}

func (c *frameCache) len() int {
	return c.cache.Len()
}
