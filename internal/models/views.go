package models

// ActivityEntry is one row of the unified activity feed.
type ActivityEntry struct {
	ID      int64   `json:"id"`
	Date    Date    `json:"date"`
	Kind    Kind    `json:"kind"`
	Primary string  `json:"primary_text"`
	Detail  string  `json:"detail_text"`
	Amount  float64 `json:"amount"`
}

// HistoryEntry is one row of a per-account activity table. Label
// distinguishes sent and received transfers, which the unified feed does not.
type HistoryEntry struct {
	ID     int64   `json:"id"`
	Date   Date    `json:"date"`
	Label  string  `json:"kind"`
	Amount float64 `json:"amount"`
	Detail string  `json:"detail"`
}

// DailyBalance represents balance for a specific day
type DailyBalance struct {
	Date    Date    `json:"date"`
	Balance float64 `json:"balance"`
}

// Goals holds the user-facing goal thresholds.
type Goals struct {
	WeeklySpend    float64 `json:"weekly_spend_goal"`
	MonthlySavings float64 `json:"monthly_savings_goal"`
}

// GoalProgress reports progress against both goals. MonthRemaining is
// negative when savings exceed the goal.
type GoalProgress struct {
	WeekStart     Date    `json:"week_start"`
	WeekEnd       Date    `json:"week_end"`
	WeekSpent     float64 `json:"week_spent"`
	WeekGoal      float64 `json:"week_goal"`
	WeekRemaining float64 `json:"week_remaining"`
	WeekPercent   float64 `json:"week_percent"`

	MonthStart     Date    `json:"month_start"`
	MonthEnd       Date    `json:"month_end"`
	MonthSaved     float64 `json:"month_saved"`
	MonthGoal      float64 `json:"month_goal"`
	MonthRemaining float64 `json:"month_remaining"`
	MonthPercent   float64 `json:"month_percent"`
}
