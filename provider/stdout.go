package provider

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"text/template"

	"github.com/devopsext/proflog/common"
	"github.com/sirupsen/logrus"
)

type StdoutOptions struct {
	Format          string
	Level           string
	Template        string
	TimestampFormat string
	TextColors      bool
	Output          io.Writer
}

// Stdout is the process logger. Messages carry the caller file:line, found
// callerOffset frames above the logging call.
type Stdout struct {
	log          *logrus.Logger
	options      StdoutOptions
	callerOffset int
}

type templateFormatter struct {
	template        *template.Template
	timestampFormat string
}

func (f *templateFormatter) Format(entry *logrus.Entry) ([]byte, error) {

	fields := make(map[string]interface{}, len(entry.Data)+3)
	for k, v := range entry.Data {
		if err, ok := v.(error); ok {
			fields[k] = err.Error()
			continue
		}
		fields[k] = v
	}
	fields["msg"] = entry.Message
	fields["time"] = entry.Time.Format(f.timestampFormat)
	fields["level"] = entry.Level.String()

	var b bytes.Buffer
	if err := f.template.Execute(&b, fields); err != nil {
		return []byte(entry.Message), err
	}
	b.WriteByte('\n')
	return b.Bytes(), nil
}

func (so *Stdout) callerFields() logrus.Fields {

	function, file, line := common.GetCallerInfo(so.callerOffset + 4)
	return logrus.Fields{
		"file": fmt.Sprintf("%s:%d", file, line),
		"func": function,
	}
}

// message renders obj (an error or a format string) and reports whether
// anything should be logged at level.
func (so *Stdout) message(level logrus.Level, obj interface{}, args ...interface{}) (string, bool) {

	if obj == nil || !so.log.IsLevelEnabled(level) {
		return "", false
	}

	var message string
	switch v := obj.(type) {
	case error:
		message = v.Error()
	case string:
		message = v
		if len(args) > 0 {
			message = fmt.Sprintf(v, args...)
		}
	case fmt.Stringer:
		message = v.String()
	default:
		message = fmt.Sprintf("%v", v)
	}
	return message, message != ""
}

func (so *Stdout) logAt(level logrus.Level, obj interface{}, args ...interface{}) {

	if message, ok := so.message(level, obj, args...); ok {
		so.log.WithFields(so.callerFields()).Logln(level, message)
	}
}

func (so *Stdout) Info(obj interface{}, args ...interface{}) common.Logger {
	so.logAt(logrus.InfoLevel, obj, args...)
	return so
}

func (so *Stdout) Warn(obj interface{}, args ...interface{}) common.Logger {
	so.logAt(logrus.WarnLevel, obj, args...)
	return so
}

func (so *Stdout) Error(obj interface{}, args ...interface{}) common.Logger {
	so.logAt(logrus.ErrorLevel, obj, args...)
	return so
}

func (so *Stdout) Debug(obj interface{}, args ...interface{}) common.Logger {
	so.logAt(logrus.DebugLevel, obj, args...)
	return so
}

func (so *Stdout) Panic(obj interface{}, args ...interface{}) {
	so.logAt(logrus.PanicLevel, obj, args...)
}

func (so *Stdout) Stack(offset int) common.Logger {
	so.callerOffset = so.callerOffset - offset
	return so
}

// Writer returns a pipe into the logger at info level, for libraries that
// want an io.Writer. Callers close it when done.
func (so *Stdout) Writer() *io.PipeWriter {
	return so.log.Writer()
}

func (so *Stdout) SetCallerOffset(offset int) {
	so.callerOffset = offset
}

func newFormatter(options StdoutOptions) logrus.Formatter {

	switch options.Format {
	case "json":
		return &logrus.JSONFormatter{TimestampFormat: options.TimestampFormat}
	case "template":
		t, err := template.New("").Parse(options.Template)
		if err == nil {
			return &templateFormatter{template: t, timestampFormat: options.TimestampFormat}
		}
		fmt.Fprintf(os.Stderr, "invalid log template %q: %v\n", options.Template, err)
	}
	return &logrus.TextFormatter{
		TimestampFormat: options.TimestampFormat,
		ForceColors:     options.TextColors,
		FullTimestamp:   true,
	}
}

func newLog(options StdoutOptions) *logrus.Logger {

	log := logrus.New()
	log.SetFormatter(newFormatter(options))

	level, err := logrus.ParseLevel(options.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	if options.Output != nil {
		log.SetOutput(options.Output)
	} else {
		log.SetOutput(os.Stdout)
	}
	return log
}

func NewStdout(options StdoutOptions) *Stdout {

	return &Stdout{
		log:          newLog(options),
		options:      options,
		callerOffset: 1,
	}
}
