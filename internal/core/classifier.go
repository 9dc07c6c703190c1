package core

import "strings"

type Kind int

const (
	KindUnknown Kind = iota
	KindFood
	KindDrink
)

var (
	drinkKeywords = []string{"susu", "teh", "kopi", "air", "jus", "sirup", "soda", "minuman", "milk", "drink"}
	foodKeywords  = []string{"nasi", "roti", "daging", "telur", "sayur", "makanan", "makan", "ayam", "ikan", "mie", "rice", "food", "bread"}
)

func (k Kind) String() string {
	switch k {
	case KindFood:
		return "food"
	case KindDrink:
		return "drink"
	}
	return "unknown"
}

// Label is the word used inside prompts.
func (k Kind) Label() string {
	switch k {
	case KindFood:
		return "makanan"
	case KindDrink:
		return "minuman"
	}
	return "tidak diketahui"
}

// Classify is a substring keyword match, so "air" also hits "pairing".
// Drink keywords win when both kinds appear.
func Classify(query string) Kind {
	q := strings.ToLower(query)
	if containsAny(q, drinkKeywords) {
		return KindDrink
	}
	if containsAny(q, foodKeywords) {
		return KindFood
	}
	return KindUnknown
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
