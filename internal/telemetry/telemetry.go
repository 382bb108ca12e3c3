// Package telemetry sends a single anonymous usage ping on startup.
// The ping runs detached from the core pipeline: it shares no state with
// it, is never awaited, and its outcome never affects the run.
package telemetry

import (
	"net/http"
	"net/url"
	"time"
)

const (
	collectorURL = "http://collector.singer.io/i"
	appCategory  = "stitchload"
)

// Version is the loader version reported with the ping.
var Version = "dev"

// Send fires the usage ping on a detached goroutine and returns
// immediately. Any failure, including a panic inside the goroutine, is
// swallowed.
func Send() {
	go func() {
		defer func() {
			recover() // a telemetry failure must never surface
		}()
		ping()
	}()
}

func ping() {
	params := url.Values{
		"e":     {"se"},
		"aid":   {"singer"},
		"se_ca": {appCategory},
		"se_ac": {"open"},
		"se_la": {Version},
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(collectorURL + "?" + params.Encode())
	if err != nil {
		return
	}
	resp.Body.Close()
}
