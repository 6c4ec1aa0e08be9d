package model

// RGB is a color triple serialized as [r, g, b].
type RGB [3]uint8

// ScoreColors is the 11-step ramp from low (dark red) to high (dark green)
// robotability. The client indexes it with floor(score * (len-1)).
var ScoreColors = []RGB{
	{165, 0, 38},
	{215, 48, 39},
	{244, 109, 67},
	{253, 174, 97},
	{254, 224, 144},
	{255, 255, 191},
	{217, 239, 139},
	{166, 217, 106},
	{102, 189, 99},
	{26, 152, 80},
	{0, 104, 55},
}

// ColorFor returns the ramp entry a normalized score renders with.
func ColorFor(score float64) RGB {
	switch {
	case score <= 0:
		return ScoreColors[0]
	case score >= 1:
		return ScoreColors[len(ScoreColors)-1]
	}
	return ScoreColors[int(score*float64(len(ScoreColors)-1))]
}
