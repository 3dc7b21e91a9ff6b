package generator

// Config drives the synthetic data generator.
type Config struct {
	NumRespondents int
	// PartialChance is the probability that a respondent skipped a stage.
	PartialChance float64
	// SnapshotChance is the probability that a respondent connected a streaming account.
	SnapshotChance float64
	// SnapshotSize is the number of entries per listening snapshot.
	SnapshotSize int
	Seed         int64
}

// DefaultConfig returns baseline settings for seeding a development store.
func DefaultConfig() Config {
	return Config{
		NumRespondents: 500,
		PartialChance:  0.15,
		SnapshotChance: 0.7,
		SnapshotSize:   20,
		Seed:           42,
	}
}
