package core

import (
	"context"
	"testing"
	"time"

	"inventorycore/internal/logging"
	"inventorycore/pkg/domain"
	"inventorycore/testutil"
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() Clock { return ClockFunc(func() time.Time { return fixedNow }) }

type captureLogger struct{ calls []string }

func (c *captureLogger) Debug(msg string, _ ...any) { c.calls = append(c.calls, "d:"+msg) }
func (c *captureLogger) Info(msg string, _ ...any)  { c.calls = append(c.calls, "i:"+msg) }
func (c *captureLogger) Warn(msg string, _ ...any)  { c.calls = append(c.calls, "w:"+msg) }
func (c *captureLogger) Error(msg string, _ ...any) { c.calls = append(c.calls, "e:"+msg) }

func (c *captureLogger) has(call string) bool {
	for _, got := range c.calls {
		if got == call {
			return true
		}
	}
	return false
}

func newTestService(opts ...ServiceOption) *Service {
	base := []ServiceOption{
		WithClock(fixedClock()),
		WithNotifier(domain.NewNotifier(logging.Discard())),
	}
	return NewInMemoryService(NewDefaultRulesEngine(), append(base, opts...)...)
}

// labPayloads: BE1 (alice's bench) holding SS2, IC2 freezer holding the
// 2x3 grid box IC3 with SS1 in column 2 row 1, and sample SA1.
func labPayloads() []domain.RecordPayload {
	alice := testutil.Person("alice", 1)
	ss1 := testutil.Subsample(1, "Aliquot 1", "5", 3)
	ss1.SampleGlobal = "SA1"
	ss2 := testutil.Subsample(2, "Aliquot 2", "250", 2)
	ss2.SampleGlobal = "SA1"
	box := testutil.Cell(testutil.Grid(3, "Box A", 2, 3), 2, 1, ss1)
	return []domain.RecordPayload{
		testutil.Holding(testutil.Workbench(1, alice), ss2),
		testutil.Holding(testutil.Container(2, "Freezer"), box),
		testutil.Sample(1, "Plasma", "5.25", 3),
	}
}

func seedLab(t *testing.T, svc *Service) ImportResult {
	t.Helper()
	res, err := svc.Import(context.Background(), labPayloads())
	if err != nil {
		t.Fatalf("import lab: %v", err)
	}
	return res
}

func gid(s string) domain.GlobalID { return domain.GlobalID(s) }
