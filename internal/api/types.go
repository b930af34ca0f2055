package api

// League is the user's current league.
type League struct {
	ID          int
	Title       string
	MiningSpeed float64
}

// Stats is the account summary; StreakCount is nil when the API omits it.
type Stats struct {
	Points      float64
	StreakCount *int
	League      League
}

// Quest is a transient quest descriptor.
type Quest struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	BonusPoints float64 `json:"bonusPoints"`
}

type statsResponse struct {
	Data *struct {
		PointsCount           *float64 `json:"pointsCount"`
		DailyBonusStreakCount *int     `json:"dailyBonusStreakCount"`
		CurrentLeague         *struct {
			LeagueID    int     `json:"leagueId"`
			Title       string  `json:"title"`
			MiningSpeed float64 `json:"miningSpeed"`
		} `json:"currentLeague"`
	} `json:"data"`
}

type resultResponse struct {
	Result *bool `json:"result"`
}

type miningResponse struct {
	Data *struct {
		PointsClaimed *float64 `json:"pointsClaimed"`
	} `json:"data"`
}

type referralPointsResponse struct {
	Data *struct {
		PointsToClaim *float64 `json:"pointsToClaim"`
	} `json:"data"`
}

type questsResponse struct {
	Data *[]Quest `json:"data"`
}

type telegramBody struct {
	TelegramID int64 `json:"telegramId"`
}

type dailyClaimBody struct {
	TelegramID int64 `json:"telegramId"`
	DayCount   int   `json:"dayCount"`
}

type questBody struct {
	TelegramID int64 `json:"telegramId"`
	QuestID    int64 `json:"questId"`
}

type ipResponse struct {
	Origin string `json:"origin"`
}
