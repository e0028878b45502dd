// Package access enforces tier ceilings and daily usage quotas.
package access

import (
	"errors"
	"log/slog"
	"time"

	coreconfig "postsaver/core/config"
	"postsaver/core/logger"
	"postsaver/internal/session"
)

// ErrUnknownToken is returned by Redeem for tokens outside the allow-list.
var ErrUnknownToken = errors.New("unknown premium token")

// Unlimited is the Remaining value reported for the owner tier.
const Unlimited = -1

// Decision is the outcome of a quota check.
type Decision struct {
	Allowed bool
	// Remaining is the quota still available at decision time, i.e. the
	// ceiling minus today's usage, or Unlimited for the owner. The save
	// being decided is not yet counted; RecordUse consumes it.
	Remaining int
	// Tier is the effective tier the decision was made under, after any
	// lazy premium expiry.
	Tier session.Tier
}

// Controller applies tier and quota policy to sessions. All methods must
// run inside Store.Do; the controller keeps no per-user state of its own,
// everything lives on the session.
type Controller struct {
	tokens       map[string]struct{}
	freeLimit    int
	premiumLimit int
	grantTTL     time.Duration
	loc          *time.Location
	log          *slog.Logger
}

// NewController builds a controller from normalized access configuration.
func NewController(cfg coreconfig.AccessConfig) *Controller {
	tokens := make(map[string]struct{}, len(cfg.PremiumTokens))
	for _, tok := range cfg.PremiumTokens {
		tokens[tok] = struct{}{}
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	return &Controller{
		tokens:       tokens,
		freeLimit:    cfg.FreeDailyLimit,
		premiumLimit: cfg.PremiumDailyLimit,
		grantTTL:     time.Duration(cfg.PremiumGrantHours) * time.Hour,
		loc:          loc,
		log:          logger.ACC,
	}
}

// Limit reports the daily ceiling for a tier. The owner has none.
func (c *Controller) Limit(tier session.Tier) int {
	switch tier {
	case session.TierOwner:
		return Unlimited
	case session.TierPremium:
		return c.premiumLimit
	default:
		return c.freeLimit
	}
}

// EffectiveTier applies lazy premium expiry and returns the tier that
// holds at now. Demotion is one way: expiry never re-promotes.
func (c *Controller) EffectiveTier(sess *session.Session, now time.Time) session.Tier {
	if sess.Tier == session.TierPremium && !sess.PremiumExpiresAt.IsZero() && now.After(sess.PremiumExpiresAt) {
		sess.Tier = session.TierFree
		sess.PremiumExpiresAt = time.Time{}
		c.log.Info("premium expired", "user_id", sess.UserID)
	}
	return sess.Tier
}

// CanProceed decides whether sess may perform one more save at now. It
// applies the lazy calendar-day rollover and lazy premium expiry but does
// not consume quota; call RecordUse after the save succeeds.
func (c *Controller) CanProceed(sess *session.Session, now time.Time) Decision {
	tier := c.EffectiveTier(sess, now)
	if tier == session.TierOwner {
		return Decision{Allowed: true, Remaining: Unlimited, Tier: tier}
	}

	c.rollover(sess, now)

	limit := c.Limit(tier)
	if sess.DailyUsage >= limit {
		return Decision{Allowed: false, Remaining: 0, Tier: tier}
	}
	return Decision{Allowed: true, Remaining: limit - sess.DailyUsage, Tier: tier}
}

// RecordUse consumes one unit of today's quota. Owner usage is not
// tracked. Failed saves must not reach this call.
func (c *Controller) RecordUse(sess *session.Session, now time.Time) {
	if c.EffectiveTier(sess, now) == session.TierOwner {
		return
	}
	c.rollover(sess, now)
	sess.DailyUsage++
}

// Remaining reports how many saves sess has left today without consuming
// anything.
func (c *Controller) Remaining(sess *session.Session, now time.Time) int {
	tier := c.EffectiveTier(sess, now)
	if tier == session.TierOwner {
		return Unlimited
	}
	c.rollover(sess, now)
	if left := c.Limit(tier) - sess.DailyUsage; left > 0 {
		return left
	}
	return 0
}

// Redeem exchanges a premium token for a grant expiring grantTTL from
// now. A repeated redemption overwrites the expiry rather than extending
// it. The owner tier is never downgraded: a valid token changes nothing
// for the owner and Redeem reports that with a zero expiry.
func (c *Controller) Redeem(sess *session.Session, token string, now time.Time) (time.Time, error) {
	if _, ok := c.tokens[token]; !ok {
		return time.Time{}, ErrUnknownToken
	}
	if sess.Tier == session.TierOwner {
		return time.Time{}, nil
	}
	expires := now.Add(c.grantTTL)
	sess.Tier = session.TierPremium
	sess.PremiumExpiresAt = expires
	c.log.Info("premium token redeemed", "user_id", sess.UserID, "expires_at", expires)
	return expires, nil
}

// ResetAt reports when today's quota window ends, i.e. the next midnight
// in the configured location.
func (c *Controller) ResetAt(now time.Time) time.Time {
	y, m, d := now.In(c.loc).Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, c.loc)
}

// rollover zeroes the usage counter when the calendar day in the
// configured location has changed since the last recorded use.
func (c *Controller) rollover(sess *session.Session, now time.Time) {
	day := startOfDay(now, c.loc)
	if !sess.UsageDay.Equal(day) {
		sess.UsageDay = day
		sess.DailyUsage = 0
	}
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
