package logsvc

import (
	"log"
	"sort"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"

	"github.com/trezcool/masomo-grading/core"
)

// RollbarLogger reports to Rollbar (when enabled) and mirrors every entry to a std logger.
type RollbarLogger struct {
	std        *log.Logger
	debug      bool
	reportable bool // a token is set and we are not under test
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(std *log.Logger, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	l := &RollbarLogger{
		std:        std,
		debug:      conf.Debug,
		reportable: conf.RollbarToken != "" && !conf.TestMode,
	}
	rollbar.SetEnabled(l.reportable)
	return l
}

func (l RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled && l.reportable)
}

// Wait blocks until queued Rollbar items are sent.
func (l RollbarLogger) Wait() {
	rollbar.Wait()
}

// expected fmt: msg | error, map[string]interface{}...
// Rollbar keeps a single map of extras, so every map arg is merged into one.
func (l RollbarLogger) prepare(msg string, args []interface{}) []interface{} {
	var extras map[string]interface{}
	newArgs := make([]interface{}, 0, len(args)+1)
	newArgs = append(newArgs, msg)
	for _, arg := range args {
		if data, ok := arg.(map[string]interface{}); ok {
			if extras == nil {
				extras = make(map[string]interface{}, len(data))
			}
			for k, v := range data {
				extras[k] = v
			}
			continue
		}
		newArgs = append(newArgs, arg)
	}
	if extras != nil {
		newArgs = append(newArgs, extras)
	}
	return newArgs
}

func (l RollbarLogger) print(level, msg string, args []interface{}) {
	l.std.Printf("%s: %s", level, msg)
	for _, arg := range args {
		if data, ok := arg.(map[string]interface{}); ok {
			l.printData(data)
			continue
		}
		l.std.Printf("\t%+v\n", arg)
	}
}

func (l RollbarLogger) printData(data map[string]interface{}) {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		l.std.Printf("\t%s=%v\n", k, data[k])
	}
}

func (l RollbarLogger) Debug(msg string, args ...interface{}) {
	if !l.debug {
		return
	}
	rollbar.Debug(l.prepare(msg, args)...)
	l.print("DEBUG", msg, args)
}

func (l RollbarLogger) Info(msg string, args ...interface{}) {
	rollbar.Info(l.prepare(msg, args)...)
	l.print("INFO", msg, args)
}

func (l RollbarLogger) Warn(msg string, args ...interface{}) {
	rollbar.Warning(l.prepare(msg, args)...)
	l.print("WARN", msg, args)
}

func (l RollbarLogger) Error(msg string, args ...interface{}) {
	rollbar.Error(l.prepare(msg, args)...)
	l.print("ERROR", msg, args)
}

func (l RollbarLogger) Fatal(msg string, args ...interface{}) {
	rollbar.Critical(l.prepare(msg, args)...)
	l.print("FATAL", msg, args)
	rollbar.Wait()
	l.std.Fatal(msg)
}
