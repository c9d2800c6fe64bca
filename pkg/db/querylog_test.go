package db

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/farmconnect/farmconnect-backend/pkg/logger"
)

func traceSQL() (string, int64) { return "SELECT * FROM products", 3 }

func TestQueryLogReportsSlowAndFailedStatements(t *testing.T) {
	buf := &bytes.Buffer{}
	ql := newQueryLog(logger.New(logger.Options{ServiceName: "test", Output: buf}), 100*time.Millisecond)
	ctx := context.Background()

	ql.Trace(ctx, time.Now(), traceSQL, nil)
	if buf.Len() != 0 {
		t.Fatalf("fast query should not be logged: %s", buf.String())
	}

	ql.Trace(ctx, time.Now(), traceSQL, gorm.ErrRecordNotFound)
	if buf.Len() != 0 {
		t.Fatalf("not found should not be logged: %s", buf.String())
	}

	ql.Trace(ctx, time.Now().Add(-time.Second), traceSQL, nil)
	if !strings.Contains(buf.String(), `"slow query"`) || !strings.Contains(buf.String(), "SELECT * FROM products") {
		t.Fatalf("expected slow query entry, got %s", buf.String())
	}

	buf.Reset()
	ql.Trace(ctx, time.Now(), traceSQL, errors.New("relation does not exist"))
	if !strings.Contains(buf.String(), `"query failed"`) {
		t.Fatalf("expected failure entry, got %s", buf.String())
	}
}

func TestQueryLogSilentMode(t *testing.T) {
	buf := &bytes.Buffer{}
	ql := newQueryLog(logger.New(logger.Options{ServiceName: "test", Output: buf}), time.Millisecond).
		LogMode(gormlogger.Silent)
	ql.Trace(context.Background(), time.Now().Add(-time.Second), traceSQL, errors.New("boom"))
	if buf.Len() != 0 {
		t.Fatalf("silent mode logged %s", buf.String())
	}
}

func TestQueryLogWithoutLogger(t *testing.T) {
	if newQueryLog(nil, time.Second) != gormlogger.Discard {
		t.Fatal("nil logger should discard")
	}
}
