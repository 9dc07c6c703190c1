package core

import (
	"math"
	"strconv"
)

type Category int

const (
	CategoryInvalid Category = iota
	CategoryUnknown
	CategoryUnderweight
	CategoryNormal
	CategoryOverweight
	CategoryObese
)

var categoryNames = map[Category]string{
	CategoryInvalid:     "invalid",
	CategoryUnknown:     "unknown",
	CategoryUnderweight: "underweight",
	CategoryNormal:      "normal",
	CategoryOverweight:  "overweight",
	CategoryObese:       "obese",
}

var categoryLabels = map[Category]string{
	CategoryInvalid:     "Tidak Valid",
	CategoryUnknown:     "Tidak Diketahui",
	CategoryUnderweight: "Kurus (Underweight)",
	CategoryNormal:      "Normal (Ideal)",
	CategoryOverweight:  "Kelebihan Berat Badan (Overweight)",
	CategoryObese:       "Obesitas",
}

var categorySuggestions = map[Category]string{
	CategoryInvalid:     "Berat dan tinggi badan harus berupa angka.",
	CategoryUnknown:     "Tinggi badan harus merupakan angka positif lebih dari 0.",
	CategoryUnderweight: "Disarankan untuk menambah asupan kalori dari makanan bergizi dan konsultasi dengan ahli gizi.",
	CategoryNormal:      "Pertahankan pola makan seimbang dan aktivitas fisik teratur.",
	CategoryOverweight:  "Disarankan untuk mengurangi asupan makanan tinggi lemak dan gula, serta meningkatkan aktivitas fisik.",
	CategoryObese:       "Sangat disarankan untuk berkonsultasi dengan dokter atau ahli gizi untuk program penurunan berat badan yang aman.",
}

func (c Category) String() string { return categoryNames[c] }

// Label is the Indonesian name shown to users.
func (c Category) Label() string { return categoryLabels[c] }

// Usable reports whether a program can be built on top of this category.
func (c Category) Usable() bool {
	return c != CategoryInvalid && c != CategoryUnknown
}

type HealthMetrics struct {
	BMI        float64
	Category   Category
	Suggestion string
}

// FormattedBMI always shows two decimals.
func (m HealthMetrics) FormattedBMI() string {
	return strconv.FormatFloat(m.BMI, 'f', 2, 64)
}

// ComputeHealthMetrics derives BMI from weight in kg and height in cm.
func ComputeHealthMetrics(weight, height Measurement) HealthMetrics {
	w, wok := weight.Float()
	h, hok := height.Float()
	if !wok || !hok {
		return metricsFor(0, CategoryInvalid)
	}
	if h <= 0 {
		return metricsFor(0, CategoryUnknown)
	}

	hm := h / 100
	bmi := w / (hm * hm)

	var c Category
	switch {
	case bmi < 18.5:
		c = CategoryUnderweight
	case bmi < 24.9:
		c = CategoryNormal
	case bmi < 29.9:
		c = CategoryOverweight
	default:
		c = CategoryObese
	}
	return metricsFor(math.Round(bmi*100)/100, c)
}

func metricsFor(bmi float64, c Category) HealthMetrics {
	return HealthMetrics{BMI: bmi, Category: c, Suggestion: categorySuggestions[c]}
}
