package gologger

import (
	job "github.com/goliatone/go-job"
	glog "github.com/goliatone/go-logger/glog"
)

// JobLogger hands go-job components the logger provider names for a
// component. A nil provider yields a nop logger.
func JobLogger(provider glog.LoggerProvider, name string) job.Logger {
	_, logger := glog.Resolve(name, provider, nil)
	return job.GoLogger(logger)
}
