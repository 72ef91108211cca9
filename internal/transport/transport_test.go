package transport

import (
	"beatmap/pkg/utils"
	"errors"
	"math"
	"testing"
)

func TestFanout(t *testing.T) {
	a, b := &utils.MockTransport{}, &utils.MockTransport{}
	f := Fanout{a, b}

	if err := f.Send("hello"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	for i, m := range []*utils.MockTransport{a, b} {
		if got := m.Messages(); len(got) != 1 || got[0] != "hello" {
			t.Errorf("transport %d got %v", i, got)
		}
		if !m.Closed {
			t.Errorf("transport %d not closed", i)
		}
	}
}

func TestFanoutKeepsSendingAfterError(t *testing.T) {
	boom := errors.New("boom")
	failing := &utils.MockTransport{Err: boom}
	ok := &utils.MockTransport{}

	err := Fanout{failing, ok}.Send(1)
	if !errors.Is(err, boom) {
		t.Errorf("error = %v, want boom", err)
	}
	if len(ok.Messages()) != 1 {
		t.Error("healthy transport missed the message")
	}
}

func TestNewSeries(t *testing.T) {
	s := NewSeries("onsets", 0.25, []float64{1, 2})
	if s.Type != TypeSeries || s.Name != "onsets" || s.TimePerFrame != 0.25 || len(s.Values) != 2 {
		t.Errorf("NewSeries = %+v", s)
	}
}

func TestLoggingTransport(t *testing.T) {
	lt := NewLoggingTransport()
	if err := lt.Send(NewSeries("flux", 0.1, []float64{0})); err != nil {
		t.Errorf("Send: %v", err)
	}
	// Unmarshalable values are logged raw, never rejected.
	if err := lt.Send(math.NaN()); err != nil {
		t.Errorf("Send(NaN): %v", err)
	}
	if err := lt.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}
