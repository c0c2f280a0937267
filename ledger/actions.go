package ledger

import (
	"fmt"
	"time"
)

// =============================================================================
// ACTION KEYS - One constructor per rewardable action
// =============================================================================
// Idempotent keys embed the content id so each distinct instance is
// claimable exactly once per account.

func NewsReadKey(newsID string) ActionKey {
	return ActionKey(fmt.Sprintf("news_read:%s", newsID))
}

func VideoWatchKey(videoID string) ActionKey {
	return ActionKey(fmt.Sprintf("video_watch:%s", videoID))
}

func ShareKey(contentID string) ActionKey {
	return ActionKey(fmt.Sprintf("share:%s", contentID))
}

// MarketRedeemKey embeds the redemption id: redemptions are repeatable per
// item, so each redemption's entry needs its own key.
func MarketRedeemKey(itemID ItemID, redemptionID RedemptionID) ActionKey {
	return ActionKey(fmt.Sprintf("market_redeem:%s:%s", itemID, redemptionID))
}

// =============================================================================
// COOLDOWN KEYS - Time-gated rewards
// =============================================================================

const (
	// CooldownDailyCheckin gates the daily check-in bonus.
	CooldownDailyCheckin CooldownKey = "daily_checkin"

	// CooldownWeeklyQuiz gates the weekly quiz reward.
	CooldownWeeklyQuiz CooldownKey = "weekly_quiz"
)

const (
	// DailyCheckinWindow is elapsed-duration: 24 hours since the last
	// successful check-in, not once per calendar day.
	DailyCheckinWindow = 24 * time.Hour

	// WeeklyQuizWindow is 7 elapsed days since the last quiz claim.
	WeeklyQuizWindow = 7 * 24 * time.Hour
)
