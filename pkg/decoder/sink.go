package decoder

// Marker is one per-bit annotation recorded by SliceSink.
type Marker struct {
	Sample  uint64
	Kind    MarkerKind
	Channel int
}

// SliceSink is an in-memory FrameSink: every Frame added is appended to
// Frames, visible immediately (Commit is a no-op since there's no
// buffering to flush). Useful for tests and for library consumers that
// want decoded frames directly instead of a capture file.
type SliceSink struct {
	Frames  []Frame
	Markers []Marker
}

func (s *SliceSink) AddFrame(f Frame) {
	s.Frames = append(s.Frames, f)
}

func (s *SliceSink) Commit() {}

func (s *SliceSink) AddMarker(sample uint64, kind MarkerKind, channel int) {
	s.Markers = append(s.Markers, Marker{Sample: sample, Kind: kind, Channel: channel})
}
