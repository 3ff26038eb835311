package job

import (
	"github.com/mayugoro/xray/logger"
	"github.com/mayugoro/xray/web/security"
)

type RateLimiterProvider interface {
	GetRateLimiter() *security.RateLimiter
}

// RateLimitCleanupJob 定期清理闲置的限速桶
type RateLimitCleanupJob struct {
	providers []RateLimiterProvider
}

func NewRateLimitCleanupJob(providers ...RateLimiterProvider) *RateLimitCleanupJob {
	return &RateLimitCleanupJob{providers: providers}
}

func (j *RateLimitCleanupJob) Run() {
	removed := 0
	for _, p := range j.providers {
		if rl := p.GetRateLimiter(); rl != nil {
			removed += rl.Cleanup()
		}
	}
	if removed > 0 {
		logger.Debugf("removed %d idle rate limit buckets", removed)
	}
}
