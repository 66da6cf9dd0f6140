package log

import (
	"bytes"
	"errors"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
)

func captureLogs(c *qt.C, level string) *bytes.Buffer {
	prevLevel := Level()
	buf := new(bytes.Buffer)
	testWriter = buf
	Init(level, testWriterName, nil)
	c.Cleanup(func() {
		testWriter = nil
		Init(prevLevel, "stderr", nil)
	})
	buf.Reset()
	return buf
}

func TestLevelFiltering(t *testing.T) {
	c := qt.New(t)
	buf := captureLogs(c, LogLevelWarn)
	c.Assert(Level(), qt.Equals, LogLevelWarn)

	Debugw("hidden debug", "k", 1)
	Infow("hidden info")
	c.Assert(buf.Len(), qt.Equals, 0)

	Warnw("census rejected", "size", 3)
	c.Assert(buf.String(), qt.Contains, "census rejected")
	c.Assert(buf.String(), qt.Contains, "size=3")

	Errorw(errors.New("boom"), "proof failed")
	c.Assert(buf.String(), qt.Contains, "proof failed")
	c.Assert(buf.String(), qt.Contains, "boom")
}

func TestTook(t *testing.T) {
	c := qt.New(t)
	buf := captureLogs(c, LogLevelDebug)
	Took("membership proof generated", time.Now().Add(-time.Second), "index", 84)
	c.Assert(buf.String(), qt.Contains, "membership proof generated")
	c.Assert(buf.String(), qt.Contains, "index=84")
	c.Assert(buf.String(), qt.Contains, "took=")
}

func TestErrorOutput(t *testing.T) {
	c := qt.New(t)
	buf := new(bytes.Buffer)
	errBuf := new(bytes.Buffer)
	testWriter = buf
	Init(LogLevelDebug, testWriterName, errBuf)
	c.Cleanup(func() {
		testWriter = nil
		Init(LogLevelError, "stderr", nil)
	})
	errBuf.Reset()

	Infow("only in main output")
	c.Assert(errBuf.Len(), qt.Equals, 0)
	Warnw("copied to error output")
	c.Assert(errBuf.String(), qt.Contains, "copied to error output")
	c.Assert(buf.String(), qt.Contains, "only in main output")
}

func TestInvalidLevel(t *testing.T) {
	c := qt.New(t)
	c.Assert(func() { Init("verbose", "stderr", nil) }, qt.PanicMatches, `invalid log level: "verbose"`)
}
