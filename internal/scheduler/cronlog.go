package scheduler

import (
	"fmt"

	logx "choreminder/pkg/logx"
)

// cronLogger adapts logx to cron.Logger. Cron's per-tick info lines go to trace.
type cronLogger struct {
	log logx.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Trace("cron: "+msg, kvFields(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	fields := append([]logx.Field{logx.Err(err)}, kvFields(keysAndValues)...)
	l.log.Error("cron: "+msg, fields...)
}

func kvFields(kv []any) []logx.Field {
	out := make([]logx.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, logx.Any(fmt.Sprint(kv[i]), kv[i+1]))
	}
	return out
}
