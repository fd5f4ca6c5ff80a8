package logflags

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/ioutil"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

var primeLog = false
var coordinator = false
var worker = false
var rpc = false
var store = false

var logOut io.WriteCloser

func makeLogger(level logrus.Level, fields Fields) Logger {
	if lf := loggerFactory; lf != nil {
		return lf(level, fields, logOut)
	}
	logger := logrus.New().WithFields(logrus.Fields(fields))
	logger.Logger.Formatter = textFormatterInstance
	if logOut != nil {
		logger.Logger.Out = logOut
	}
	logger.Logger.Level = level
	return &logrusLogger{logger}
}

func makeFlaggableLogger(flag bool, fields Fields) Logger {
	if !flag {
		return makeLogger(logrus.ErrorLevel, fields)
	}
	return makeLogger(logrus.DebugLevel, fields)
}

// Prime returns true if the summation driver should log.
func Prime() bool {
	return primeLog
}

// PrimeLogger returns a logger for the prime package.
func PrimeLogger() Logger {
	return makeFlaggableLogger(primeLog, Fields{"layer": "prime"})
}

// Coordinator returns true if the coordinator should log job dispatch.
func Coordinator() bool {
	return coordinator
}

// CoordinatorLogger returns a logger for the coordinator.
func CoordinatorLogger() Logger {
	return makeFlaggableLogger(coordinator, Fields{"layer": "coordinator"})
}

// Worker returns true if workers should log.
func Worker() bool {
	return worker
}

// WorkerLogger returns a logger for the worker loop.
func WorkerLogger() Logger {
	return makeFlaggableLogger(worker, Fields{"layer": "worker"})
}

// RPC returns true if RPC messages should be logged.
func RPC() bool {
	return rpc
}

// RPCLogger returns a logger for RPC messages.
func RPCLogger() Logger {
	return makeFlaggableLogger(rpc, Fields{"layer": "rpc"})
}

// Store returns true if the result store should log.
func Store() bool {
	return store
}

// StoreLogger returns a logger for the result store.
func StoreLogger() Logger {
	return makeFlaggableLogger(store, Fields{"layer": "store"})
}

var errLogstrWithoutLog = errors.New("--log-output specified without --log")

// Setup sets component flags based on the contents of logstr.
// If logDest is not empty logs will be redirected to the file descriptor or
// file path specified by logDest.
func Setup(logFlag bool, logstr, logDest string) error {
	if logDest != "" {
		n, err := strconv.Atoi(logDest)
		if err == nil {
			logOut = os.NewFile(uintptr(n), "sumprime-logs")
		} else {
			fh, err := os.Create(logDest)
			if err != nil {
				return fmt.Errorf("could not create log file: %v", err)
			}
			logOut = fh
		}
	}
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	if !logFlag {
		log.SetOutput(ioutil.Discard)
		if logstr != "" {
			return errLogstrWithoutLog
		}
		return nil
	}
	if logstr == "" {
		logstr = "coordinator"
	}
	v := strings.Split(logstr, ",")
	for _, logcmd := range v {
		switch logcmd {
		case "prime":
			primeLog = true
		case "coordinator":
			coordinator = true
		case "worker":
			worker = true
		case "rpc":
			rpc = true
		case "store":
			store = true
		default:
			fmt.Fprintf(os.Stderr, "Warning: unknown log output value %q, run 'sumprime help log' for usage.\n", logcmd)
		}
	}
	return nil
}

// Close closes the logger output.
func Close() {
	if logOut != nil {
		logOut.Close()
	}
}

// textFormatterInstance is the default formatter used by loggers created
// in this package.
var textFormatterInstance = &textFormatter{}

// textFormatter writes "time level layer=x msg" on a single line.
type textFormatter struct {
}

func (f *textFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	var b *bytes.Buffer
	if entry.Buffer != nil {
		b = entry.Buffer
	} else {
		b = &bytes.Buffer{}
	}

	fmt.Fprintf(b, "%s %s ", entry.Time.Format("2006-01-02T15:04:05Z07:00"), entry.Level)
	for k, v := range entry.Data {
		fmt.Fprintf(b, "%s=%v ", k, v)
	}
	b.WriteString(entry.Message)
	b.WriteByte('\n')
	return b.Bytes(), nil
}
