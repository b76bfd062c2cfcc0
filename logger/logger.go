package logger

import (
	"io"
	"os"
	"path/filepath"

	fiberLogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Options struct {
	Dir        string
	Level      string
	Production bool
}

// NewLogger builds the process logger writing to stdout and a rotating
// app.log. The returned writer is shared with the HTTP access log.
func NewLogger(opts Options) (*logrus.Logger, io.Writer, error) {
	if err := os.MkdirAll(opts.Dir, os.ModePerm); err != nil {
		return nil, nil, err
	}

	logFile := &lumberjack.Logger{
		Filename:   filepath.Join(opts.Dir, "app.log"),
		MaxSize:    10,
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
	}

	multiWriter := io.MultiWriter(os.Stdout, logFile)

	log := logrus.New()
	log.SetOutput(multiWriter)

	level, err := logrus.ParseLevel(opts.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	if opts.Production {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}

	return log, multiWriter, nil
}

func AccessLogConfig(output io.Writer) fiberLogger.Config {
	return fiberLogger.Config{
		Output:     output,
		Format:     "${time} | ${locals:requestid} | ${status} | ${latency} | ${method} | ${path} | ${error}\n",
		TimeFormat: "2006-01-02 15:04:05",
		TimeZone:   "Local",
	}
}
