package auth

import (
	"sync"
	"time"
)

var (
	sweepInterval    = time.Minute
	loginWindow      = 15 * time.Minute
	lockDuration     = 10 * time.Minute
	maxLoginAttempts = 5
)

type attemptState struct {
	count        int
	firstAttempt time.Time
	lockedUntil  time.Time
}

// expired は失敗の集計窓が終わったか、ロックが明けたかを返します。
func (s *attemptState) expired(now time.Time) bool {
	if !s.lockedUntil.IsZero() {
		return !now.Before(s.lockedUntil)
	}
	return now.Sub(s.firstAttempt) > loginWindow
}

// loginLimiter はIPごとのログイン失敗回数を数え、上限を超えたら一定時間ロックします。
type loginLimiter struct {
	lock      sync.Mutex
	attempts  map[string]*attemptState
	now       func() time.Time
	lastSweep time.Time
}

func newLoginLimiter(now func() time.Time) *loginLimiter {
	return &loginLimiter{
		attempts: make(map[string]*attemptState),
		now:      now,
	}
}

// retryAfter はロック中なら残り時間を返し、そうでなければ0を返します。
func (l *loginLimiter) retryAfter(ip string) time.Duration {
	l.lock.Lock()
	defer l.lock.Unlock()

	state, ok := l.attempts[ip]
	if !ok {
		return 0
	}
	now := l.now()
	if !now.Before(state.lockedUntil) {
		if state.expired(now) {
			delete(l.attempts, ip)
		}
		return 0
	}
	return state.lockedUntil.Sub(now)
}

func (l *loginLimiter) recordFailure(ip string) int {
	l.lock.Lock()
	defer l.lock.Unlock()

	now := l.now()
	l.sweep(now)
	state, ok := l.attempts[ip]
	if !ok || state.expired(now) {
		state = &attemptState{firstAttempt: now}
		l.attempts[ip] = state
	}

	state.count++
	if state.count >= maxLoginAttempts {
		state.lockedUntil = now.Add(lockDuration)
		state.count = maxLoginAttempts
	}

	remaining := maxLoginAttempts - state.count
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}

// sweep は窓もロックも過ぎたエントリを削除します。呼び出し側でロックを取ること。
func (l *loginLimiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < sweepInterval {
		return
	}
	l.lastSweep = now
	for ip, state := range l.attempts {
		if state.expired(now) {
			delete(l.attempts, ip)
		}
	}
}

func (l *loginLimiter) reset(ip string) {
	l.lock.Lock()
	defer l.lock.Unlock()
	delete(l.attempts, ip)
}
