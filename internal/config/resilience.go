package config

import (
	"time"

	"naver_cart_stock/internal/retry"
)

type ResilienceConfig struct {
	SheetCall retry.Config
	Notify    retry.Config
}

// DefaultResilienceConfig mirrors the Sheets API quota behavior: quota
// errors back off 1s, 2s, 4s... capped at 60s for up to 10 retries. The
// retryability predicate is attached by the sheets client, which knows how
// to classify quota errors.
var DefaultResilienceConfig = ResilienceConfig{
	SheetCall: retry.Config{
		MaxRetries: 10,
		BaseDelay:  1 * time.Second,
		MaxDelay:   60 * time.Second,
	},
	Notify: retry.Config{
		MaxRetries: 3,
		BaseDelay:  1 * time.Second,
		MaxDelay:   10 * time.Second,
		Timeout:    10 * time.Second,
	},
}
