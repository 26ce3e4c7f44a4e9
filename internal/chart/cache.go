package chart

// overlayKey identifies one overlay computation. The series version stands in
// for dataset identity: any append, prepend or replace bumps it, so a stale
// entry can never be served for mutated data.
type overlayKey struct {
	version uint64
	cfg     OverlayConfig
}

// overlayCache memoizes the most recent overlay computation. Overlays are the
// only non-trivial arithmetic per snapshot; the visible-range extremes are a
// linear scan and recomputed every time instead of being cached.
type overlayCache struct {
	key overlayKey
	val *Overlays
}

func (c *overlayCache) get(version uint64, cfg OverlayConfig) (*Overlays, bool) {
	if c.val == nil {
		return nil, false
	}
	if (overlayKey{version, cfg}) != c.key {
		return nil, false
	}
	return c.val, true
}

func (c *overlayCache) put(version uint64, cfg OverlayConfig, val *Overlays) {
	c.key = overlayKey{version, cfg}
	c.val = val
}
