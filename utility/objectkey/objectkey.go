// Package objectkey builds versioned object keys, "<prefix>/<unix-seconds.micros>/<name>".
// The timestamp segment keeps repeated names from colliding and sorts uploads by time.
package objectkey

import (
	"fmt"
	"time"
)

func New(prefix string, t time.Time, name string) string {
	return prefix + "/" + Timestamp(t) + "/" + name
}

// Timestamp renders t as unix seconds with a microsecond fraction.
func Timestamp(t time.Time) string {
	return fmt.Sprintf("%d.%06d", t.Unix(), t.Nanosecond()/1000)
}
