package domain

import "time"

// Streak tracks consecutive UTC days of activity.
type Streak struct {
	Current     int       `json:"current"`
	Longest     int       `json:"longest"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// SolvedProblem records a user's first accepted submission for a problem.
type SolvedProblem struct {
	ProblemID    string    `json:"problemId"`
	Language     Language  `json:"language"`
	SolvedAt     time.Time `json:"solvedAt"`
	PointsEarned int       `json:"pointsEarned"`
}

// UserProgress is the gamification state of a user.
type UserProgress struct {
	UserID              string                   `json:"userId"`
	Points              int                      `json:"points"`
	TotalProblemsSolved int                      `json:"totalProblemsSolved"`
	ProblemsSolved      map[string]SolvedProblem `json:"problemsSolved"`
	Streaks             Streak                   `json:"streaks"`
}

// LeaderboardEntry is one ranked row of the points leaderboard.
type LeaderboardEntry struct {
	Rank   int    `json:"rank"`
	UserID string `json:"userId"`
	Points int    `json:"points"`
}
