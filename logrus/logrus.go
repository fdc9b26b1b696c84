package logrus

import (
	"io"
	"os"

	"github.com/mgrabarczyk/perptrading/trading"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

type wrapper struct {
	*logrus.Entry
}

func (w *wrapper) WithField(key string, value interface{}) trading.Logger {
	return &wrapper{w.Entry.WithField(key, value)}
}

func (w *wrapper) WithFields(fields map[string]interface{}) trading.Logger {
	return &wrapper{w.Entry.WithFields(fields)}
}

// ConfigureStandardLogger sets up the process-wide logger. If file is
// not empty, output goes to that file with rotation, mirrored to stdout.
func ConfigureStandardLogger(format, level, file string) trading.Logger {
	fieldMap := logrus.FieldMap{
		logrus.FieldKeyLevel: "severity",
		logrus.FieldKeyMsg:   "message",
	}

	if format == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{
			FieldMap: fieldMap,
		})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
			FieldMap:      fieldMap,
		})
	}

	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		logrus.Fatalf("could not parse log level: [%v]", err)
	}

	logrus.SetLevel(logLevel)

	if file != "" {
		rotatedFile := &lumberjack.Logger{
			Filename:   file,
			MaxSize:    100, // megabytes
			MaxBackups: 5,
			MaxAge:     30, // days
		}

		logrus.SetOutput(io.MultiWriter(os.Stdout, rotatedFile))
	} else {
		logrus.SetOutput(os.Stdout)
	}

	return &wrapper{
		logrus.StandardLogger().WithFields(map[string]interface{}{}),
	}
}
