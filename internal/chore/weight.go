package chore

const (
	DefaultDifficulty = 3
	DefaultFrequency  = 1

	MinDifficulty = 1
	MaxDifficulty = 5
	MinFrequency  = 1
	MaxFrequency  = 50
	MaxNameLength = 100
)

// Weight is the capacity a chore consumes: difficulty × frequency. Values
// of zero or less fall back to the defaults.
func Weight(difficulty, frequency int) int {
	if difficulty <= 0 {
		difficulty = DefaultDifficulty
	}
	if frequency <= 0 {
		frequency = DefaultFrequency
	}
	return difficulty * frequency
}
