package question

import "errors"

// Difficulty is the normalized difficulty of a question. Empty means the
// extraction service could not classify it.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Label returns the display label for the difficulty, or "" when unknown.
func (d Difficulty) Label() string {
	switch d {
	case DifficultyEasy:
		return "Easy"
	case DifficultyMedium:
		return "Medium"
	case DifficultyHard:
		return "Hard"
	default:
		return ""
	}
}

// ParseDifficulty normalizes the values the backend is known to emit:
// the names themselves, display-cased variants, and legacy numeric codes.
func ParseDifficulty(raw string) Difficulty {
	switch raw {
	case "easy", "Easy", "EASY", "1":
		return DifficultyEasy
	case "medium", "Medium", "MEDIUM", "2":
		return DifficultyMedium
	case "hard", "Hard", "HARD", "3":
		return DifficultyHard
	default:
		return ""
	}
}

// Option is one answer choice.
type Option struct {
	Label   string `json:"label"` // "A", "B", ...
	Text    string `json:"text"`
	Correct bool   `json:"is_correct"`
}

// Question is the normalized shape used everywhere downstream of
// extraction: saving to banks, display, export. Optional fields are plain
// empty strings here — sentinel handling happens at the JSON boundary.
type Question struct {
	Text       string     `json:"text"`
	Options    []Option   `json:"options"`
	Topic      string     `json:"topic,omitempty"`
	Difficulty Difficulty `json:"difficulty,omitempty"`
}

// Validate checks the question is usable before saving it to a bank.
func (q *Question) Validate() error {
	if q.Text == "" {
		return errors.New("question text cannot be empty")
	}
	if len(q.Options) < 2 {
		return errors.New("question needs at least two options")
	}
	correct := 0
	for _, opt := range q.Options {
		if opt.Text == "" {
			return errors.New("option text cannot be empty")
		}
		if opt.Correct {
			correct++
		}
	}
	if correct == 0 {
		return errors.New("question needs a correct option")
	}
	return nil
}
