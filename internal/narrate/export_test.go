package narrate

// Test-only exports.
var (
	WithClock    = withClock
	WithIDSource = withIDSource
	SegmentName  = segmentName
	CombinedName = combinedName
)
