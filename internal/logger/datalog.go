package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DataTimeLayout is the timestamp prefix of every data log line.
const DataTimeLayout = "01/02/2006 03:04:05 PM"

// DataLog appends one timestamped line per control cycle.
type DataLog struct {
	log   *zap.Logger
	close func()
}

// OpenDataLog opens path for appending, creating it if needed.
func OpenDataLog(path string) (*DataLog, error) {
	ws, closeFn, err := zap.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open data log %s: %w", path, err)
	}
	d := NewDataLog(ws)
	d.close = closeFn
	return d, nil
}

// NewDataLog writes data lines to ws.
func NewDataLog(ws zapcore.WriteSyncer) *DataLog {
	cfg := zapcore.EncoderConfig{
		TimeKey:          "ts",
		MessageKey:       "msg",
		LineEnding:       zapcore.DefaultLineEnding,
		EncodeTime:       zapcore.TimeEncoderOfLayout(DataTimeLayout),
		ConsoleSeparator: " ",
	}
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(cfg), zapcore.Lock(ws), zapcore.InfoLevel)
	return &DataLog{log: zap.New(core), close: func() {}}
}

// Record appends line with the current timestamp.
func (d *DataLog) Record(line string) {
	d.log.Info(line)
}

// Close flushes and closes the underlying file.
func (d *DataLog) Close() error {
	err := d.log.Sync()
	d.close()
	return err
}
