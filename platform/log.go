package platform

import (
	"bytes"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Hook mirrors every entry into a per-day log file, switching files at midnight.
type Hook struct {
	mu       sync.Mutex
	writer   *os.File
	logPath  string
	fileName string
	fileDate string
}

func (h *Hook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *Hook) Fire(entry *logrus.Entry) error {
	line, err := entry.String()
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	today := time.Now().Format("2006-01-02")
	if h.fileDate != today || h.writer == nil {
		writer, err := openLogFile(h.logPath, h.fileName, today)
		if err != nil {
			return err
		}
		if h.writer != nil {
			h.writer.Close()
		}
		h.writer = writer
		h.fileDate = today
	}
	_, err = h.writer.Write([]byte(line))
	return err
}

type LogFormatter struct {
}

func (m *LogFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	var b *bytes.Buffer
	if entry.Buffer != nil {
		b = entry.Buffer
	} else {
		b = &bytes.Buffer{}
	}

	timestamp := entry.Time.Format("2006-01-02 15:04:05.000")
	b.WriteString(fmt.Sprintf("[%s] [%s] %s\n", timestamp, entry.Level, entry.Message))
	return b.Bytes(), nil
}

func openLogFile(logPath, fileName, date string) (*os.File, error) {
	if err := os.MkdirAll(logPath, os.ModePerm); err != nil {
		return nil, err
	}
	filename := fmt.Sprintf("%s/%s-%s.log", logPath, date, fileName)
	return os.OpenFile(filename, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0666)
}

// InitFile routes the standard logrus logger (used by the gin access log) to
// a daily file named after fileName.
func InitFile(logPath string, fileName string) {
	logrus.SetFormatter(&LogFormatter{})
	logrus.AddHook(&Hook{
		logPath:  logPath,
		fileName: fileName,
	})
}

// InitAppLogger mirrors Logger into a daily file in logPath. Entries still go
// to stderr.
func InitAppLogger(logPath string, fileName string) {
	Logger.AddHook(&Hook{
		logPath:  logPath,
		fileName: fileName,
	})
}

func newLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&LogFormatter{})
	logger.SetOutput(os.Stderr)
	return logger
}

var Logger = newLogger()
