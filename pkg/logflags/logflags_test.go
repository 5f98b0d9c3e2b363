package logflags

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func TestMakeLogger_usingLoggerFactory(t *testing.T) {
	if loggerFactory != nil {
		t.Fatalf("expected loggerFactory to be nil; but was <%v>", loggerFactory)
	}
	defer func() {
		loggerFactory = nil
	}()
	logOut = &bufferWriter{}
	defer func() {
		logOut = nil
	}()

	expectedLogger := &logrusLogger{}
	SetLoggerFactory(func(level logrus.Level, fields Fields, out io.Writer) Logger {
		if level != logrus.DebugLevel {
			t.Fatalf("expected level to be <%v>; but was <%v>", logrus.DebugLevel, level)
		}
		if len(fields) != 1 || fields["layer"] != "watch" {
			t.Fatalf("expected fields to be {'layer':'watch'}; but was <%v>", fields)
		}
		if out != logOut {
			t.Fatalf("expected out to be <%v>; but was <%v>", logOut, out)
		}
		return expectedLogger
	})

	watch = true
	defer func() { watch = false }()
	if actual := WatchLogger(); actual != expectedLogger {
		t.Fatalf("expected actual to <%v>; but was <%v>", expectedLogger, actual)
	}
}

func TestMakeFlaggableLogger(t *testing.T) {
	for _, tc := range []struct {
		flag  bool
		level logrus.Level
	}{
		{false, logrus.ErrorLevel},
		{true, logrus.DebugLevel},
	} {
		actual, ok := makeFlaggableLogger(tc.flag, Fields{"foo": "bar"}).(*logrusLogger)
		if !ok {
			t.Fatalf("expected a *logrusLogger")
		}
		if actual.Entry.Logger.Level != tc.level {
			t.Errorf("flag %v: expected level <%v>; but was <%v>", tc.flag, tc.level, actual.Entry.Logger.Level)
		}
		if actual.Entry.Logger.Formatter != textFormatterInstance {
			t.Errorf("flag %v: unexpected formatter %v", tc.flag, actual.Entry.Logger.Formatter)
		}
		if len(actual.Entry.Data) != 1 || actual.Data["foo"] != "bar" {
			t.Errorf("expected fields {'foo':'bar'}; but was <%v>", actual.Data)
		}
	}
}

func TestSetup(t *testing.T) {
	defer func() {
		thread, regs, watch, native, script = false, false, false, false, false
	}()

	if err := Setup(false, "regs", ""); err != errLogstrWithoutLog {
		t.Fatalf("expected %v, got %v", errLogstrWithoutLog, err)
	}
	if err := Setup(true, "", ""); err != nil {
		t.Fatal(err)
	}
	if !Thread() || Regs() {
		t.Fatalf("default log output should enable only thread")
	}
	if err := Setup(true, "regs,watch,native,script", ""); err != nil {
		t.Fatal(err)
	}
	if !Regs() || !Watch() || !Native() || !Script() {
		t.Fatalf("not all layers enabled: regs=%v watch=%v native=%v script=%v", Regs(), Watch(), Native(), Script())
	}
}

func TestTextFormatter(t *testing.T) {
	entry := &logrus.Entry{
		Data:    logrus.Fields{"layer": "thread", "tid": 42, "state": "stopped here"},
		Time:    time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC),
		Level:   logrus.DebugLevel,
		Message: "notify",
	}
	buf, err := textFormatterInstance.Format(entry)
	if err != nil {
		t.Fatal(err)
	}
	const want = "2020-01-02T03:04:05Z debug layer=thread,state=\"stopped here\",tid=42 notify\n"
	if got := string(buf); got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

type bufferWriter struct {
	bytes.Buffer
}

func (bw bufferWriter) Close() error {
	return nil
}
