package service

import "github.com/noah-isme/sma-lesson-api/internal/models"

// ConsumeLessons returns balance with count lessons moved from remaining to used.
// An ACTIVE balance that runs out becomes COMPLETED.
func ConsumeLessons(balance models.LessonPackage, count int) models.LessonPackage {
	if count <= 0 {
		return balance
	}
	balance.UsedLessons += count
	balance.RemainingLessons = balance.TotalLessons - balance.UsedLessons
	if balance.RemainingLessons <= 0 && balance.Status == models.PackageStatusActive {
		balance.Status = models.PackageStatusCompleted
	}
	return balance
}

// ReleaseLessons returns balance with up to count used lessons given back.
// UsedLessons never drops below zero and the status is left unchanged.
func ReleaseLessons(balance models.LessonPackage, count int) models.LessonPackage {
	if count <= 0 || balance.UsedLessons <= 0 {
		return balance
	}
	if count > balance.UsedLessons {
		count = balance.UsedLessons
	}
	balance.UsedLessons -= count
	balance.RemainingLessons += count
	return balance
}
