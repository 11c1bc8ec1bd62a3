// Package scoring выставляет синтетический кредитный рейтинг заемщикам.
// Используется только служебной командой пересчета рейтингов.
package scoring

import (
	"math/rand"
	"strings"
)

const (
	BaseScore = 500
	MinScore  = 300
	MaxScore  = 850
	MaxJitter = 30
)

// Rating категория кредитного рейтинга
type Rating string

const (
	RatingVeryPoor  Rating = "Very Poor"
	RatingPoor      Rating = "Poor"
	RatingFair      Rating = "Fair"
	RatingGood      Rating = "Good"
	RatingVeryGood  Rating = "Very Good"
	RatingExcellent Rating = "Excellent"
)

// Profile данные заемщика и заявки, по которым считается рейтинг
type Profile struct {
	Amount     float64
	Purpose    string
	TermMonths int
	Occupation string
}

// Jitter источник случайной поправки в диапазоне [-MaxJitter, MaxJitter]
type Jitter interface {
	Next() int
}

// NoJitter всегда возвращает ноль
type NoJitter struct{}

func (NoJitter) Next() int { return 0 }

// RandJitter поправка из генератора с заданным зерном
type RandJitter struct {
	rng *rand.Rand
}

// NewRandJitter создает воспроизводимый источник поправок
func NewRandJitter(seed int64) *RandJitter {
	return &RandJitter{rng: rand.New(rand.NewSource(seed))}
}

func (j *RandJitter) Next() int {
	return j.rng.Intn(2*MaxJitter+1) - MaxJitter
}

type keywordDelta struct {
	keywords []string
	delta    int
}

var purposeDeltas = []keywordDelta{
	{[]string{"business", "agriculture", "farming", "education", "school"}, 30},
	{[]string{"medical", "emergency"}, 10},
	{[]string{"personal", "wedding", "party", "travel"}, -20},
}

var occupationDeltas = []keywordDelta{
	{[]string{"teacher", "nurse", "doctor", "engineer", "civil servant", "government"}, 50},
	{[]string{"trader", "business", "farmer", "shop"}, 25},
	{[]string{"student", "unemployed"}, -40},
}

// Score считает балл и категорию. Первое совпавшее правило в каждой группе
// ключевых слов побеждает.
func Score(p Profile, jitter Jitter) (int, Rating) {
	if jitter == nil {
		jitter = NoJitter{}
	}

	score := BaseScore
	score += amountDelta(p.Amount)
	score += matchDelta(p.Purpose, purposeDeltas)
	score += termDelta(p.TermMonths)
	score += matchDelta(p.Occupation, occupationDeltas)

	j := jitter.Next()
	if j > MaxJitter {
		j = MaxJitter
	}
	if j < -MaxJitter {
		j = -MaxJitter
	}
	score += j

	if score < MinScore {
		score = MinScore
	}
	if score > MaxScore {
		score = MaxScore
	}

	return score, RatingFor(score)
}

// RatingFor переводит балл в категорию
func RatingFor(score int) Rating {
	switch {
	case score < 550:
		return RatingVeryPoor
	case score < 600:
		return RatingPoor
	case score < 650:
		return RatingFair
	case score < 700:
		return RatingGood
	case score < 750:
		return RatingVeryGood
	default:
		return RatingExcellent
	}
}

func amountDelta(amount float64) int {
	switch {
	case amount < 500_000:
		return 40
	case amount < 2_000_000:
		return 20
	case amount < 5_000_000:
		return 0
	default:
		return -30
	}
}

func termDelta(months int) int {
	switch {
	case months <= 0:
		return 0
	case months <= 6:
		return 20
	case months <= 12:
		return 10
	case months > 24:
		return -20
	default:
		return 0
	}
}

func matchDelta(text string, rules []keywordDelta) int {
	text = strings.ToLower(text)
	if text == "" {
		return 0
	}
	for _, rule := range rules {
		for _, kw := range rule.keywords {
			if strings.Contains(text, kw) {
				return rule.delta
			}
		}
	}
	return 0
}
