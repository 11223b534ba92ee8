package di

import (
	"os"
	"time"
)

func getenvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// nowFunc isolates the one time.Now() call the wiring step needs (seeding
// the scheduler's first slow-loop deadline).
func nowFunc() time.Time {
	return time.Now()
}
