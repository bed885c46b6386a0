package service

import (
	"math"

	"github.com/noah-isme/tclass-api/internal/models"
)

// PassingPercentage is the minimum percentage counted as passing in student stats.
const PassingPercentage = 75.0

// DefaultTotalPoints applies when a grade is recorded without total_points.
const DefaultTotalPoints = 100.0

type letterBand struct {
	min    float64
	letter string
}

var letterBands = []letterBand{
	{92, "A"},
	{88, "A-"},
	{85, "B+"},
	{82, "B"},
	{78, "B-"},
	{75, "C+"},
	{70, "C"},
}

// Percentage returns score/total*100 rounded to two decimals, or 0 when total is not positive.
func Percentage(score, total float64) float64 {
	if total <= 0 {
		return 0
	}
	return round2(score / total * 100)
}

// LetterGrade maps a percentage onto the letter band table; the first band whose minimum is met wins.
func LetterGrade(percentage float64) string {
	for _, band := range letterBands {
		if percentage >= band.min {
			return band.letter
		}
	}
	return "F"
}

// StudentStats aggregates percentages. An empty history yields zero values.
func StudentStats(studentID string, percentages []float64) models.StudentGradeStats {
	stats := models.StudentGradeStats{StudentID: studentID, TotalGraded: len(percentages)}
	if len(percentages) == 0 {
		return stats
	}

	var sum float64
	passing := 0
	stats.HighestPercentage = percentages[0]
	stats.LowestPercentage = percentages[0]
	for _, p := range percentages {
		sum += p
		if p > stats.HighestPercentage {
			stats.HighestPercentage = p
		}
		if p < stats.LowestPercentage {
			stats.LowestPercentage = p
		}
		if p >= PassingPercentage {
			passing++
		}
	}
	stats.AveragePercentage = round2(sum / float64(len(percentages)))
	stats.PassingRate = round2(float64(passing) / float64(len(percentages)) * 100)
	return stats
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
