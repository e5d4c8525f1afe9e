package tts

// Exports for black-box tests.
var (
	WithElevenLabsHTTPClient = withElevenLabsHTTPClient
	WithInworldHTTPClient    = withInworldHTTPClient
	BuildInworldRequest      = buildInworldRequest
)

// InworldRequestFields exposes the optional fields of a built request.
func InworldRequestFields(req inworldRequest) (temperature, speakingRate *float64) {
	return req.Temperature, req.AudioConfig.SpeakingRate
}
