package logging

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is the process-wide logger. It writes to stdout until Init
// configures it.
var Logger = logrus.New()

var once sync.Once

// Options controls logger setup.
type Options struct {
	Level      string // debug, info, warn, error
	File       string // rotate into this file when set, stdout otherwise
	SystemName string
}

// Formatter renders one line per entry with sorted structured fields.
type Formatter struct {
	SystemName string
}

func (f *Formatter) Format(entry *logrus.Entry) ([]byte, error) {
	var b *bytes.Buffer
	if entry.Buffer != nil {
		b = entry.Buffer
	} else {
		b = &bytes.Buffer{}
	}

	fmt.Fprintf(b, "%s [%s] %s %s",
		entry.Time.UTC().Format("2006-01-02T15:04:05.000Z"),
		f.SystemName,
		strings.ToUpper(entry.Level.String()),
		entry.Message,
	)

	keys := make([]string, 0, len(entry.Data))
	for k := range entry.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(b, " %s=%v", k, entry.Data[k])
	}
	b.WriteByte('\n')
	return b.Bytes(), nil
}

// Init configures Logger once. Later calls are ignored.
func Init(opts Options) {
	once.Do(func() {
		name := opts.SystemName
		if name == "" {
			name = "workspace-engine"
		}
		Logger.SetFormatter(&Formatter{SystemName: name})

		level, err := logrus.ParseLevel(opts.Level)
		if err != nil {
			level = logrus.InfoLevel
		}
		Logger.SetLevel(level)

		if opts.File == "" {
			Logger.SetOutput(os.Stdout)
			return
		}
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			Logger.WithError(err).Warn("Failed to create log directory, logging to stdout")
			Logger.SetOutput(os.Stdout)
			return
		}
		Logger.SetOutput(&lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		})
		Logger.WithField("file", opts.File).Info("Logger initialized")
	})
}

// For returns an entry tagged with the component name.
func For(component string) *logrus.Entry {
	return Logger.WithField("component", component)
}
