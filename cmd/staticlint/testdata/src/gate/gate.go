package gate

import "time"

func expired(at time.Time) bool {
	return !time.Now().Before(at) // want `time.Now is forbidden in gate`
}

func age(at time.Time) time.Duration {
	return time.Since(at) // want `time.Now is forbidden in gate`
}

func expiredAt(now, at time.Time) bool {
	return !now.Before(at)
}
