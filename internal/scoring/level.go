package scoring

// Level is the coarse reading of a trait score shown on the results page.
type Level string

const (
	LevelHigh     Level = "high"
	LevelModerate Level = "moderate"
	LevelLow      Level = "low"
	LevelUnscored Level = "unscored"
)

const (
	highThreshold = 3.5
	lowThreshold  = 2.5
)

// Interpret classifies a score. Without coverage the score is meaningless.
func Interpret(score float64, cov Coverage) Level {
	switch {
	case !cov.Scored():
		return LevelUnscored
	case score > highThreshold:
		return LevelHigh
	case score < lowThreshold:
		return LevelLow
	default:
		return LevelModerate
	}
}
