// Package jobs は認証アクティビティを非同期キュー経由で記録します。
package jobs

import "time"

// EventKind は記録するアクティビティの種別を表します。
type EventKind string

const (
	EventRegister EventKind = "register"
	EventLogin    EventKind = "login"
	EventLogout   EventKind = "logout"
)

// Event は1件の認証アクティビティです。
type Event struct {
	UserID    string    `json:"userId"`
	Kind      EventKind `json:"kind"`
	IP        string    `json:"ip,omitempty"`
	UserAgent string    `json:"userAgent,omitempty"`
	At        time.Time `json:"at"`
}
