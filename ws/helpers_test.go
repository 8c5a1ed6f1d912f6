package ws

import (
	"strings"
	"time"
)

const baseTimeout = time.Second * 5

func getWSURLFromHTTPURL(url string) string {
	return strings.Replace(url, "http://", "ws://", 1)
}

// waitOrTimeout waits for fn to finish or times out.
func waitOrTimeout(timeout time.Duration, fn func()) bool {
	done := make(chan struct{})
	go func() {
		fn()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}
