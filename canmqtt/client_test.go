package canmqtt

import (
	"testing"
	"time"
)

func TestConvertMessage(t *testing.T) {
	payload := []byte(`{"t":1699999999.25,"cls":"61444","inst":2,"src":"0x21","data":"0102aabb","err":false}`)
	f, err := ConvertMessage(payload)
	if err != nil {
		t.Fatalf("ConvertMessage: %v", err)
	}
	if f.Class != "61444" || f.Source != "0x21" {
		t.Fatalf("unexpected identity: %+v", f)
	}
	if !f.HasInstance || f.Instance != 2 {
		t.Fatalf("expected instance 2, got %+v", f)
	}
	if len(f.Data) != 4 || f.Data[2] != 0xAA {
		t.Fatalf("unexpected payload: %v", f.Data)
	}
	want := time.Unix(1699999999, 250000000).UTC()
	if f.Time.Sub(want) > time.Millisecond || want.Sub(f.Time) > time.Millisecond {
		t.Fatalf("time = %v, want %v", f.Time, want)
	}
}

func TestConvertMessageAbsentInstance(t *testing.T) {
	f, err := ConvertMessage([]byte(`{"t":1,"cls":"61444","src":"0x21","data":""}`))
	if err != nil {
		t.Fatalf("ConvertMessage: %v", err)
	}
	if f.HasInstance {
		t.Fatalf("absent instance must not be treated as zero")
	}
	if len(f.Data) != 0 {
		t.Fatalf("expected empty payload, got %v", f.Data)
	}
}

func TestConvertMessageErrorFlag(t *testing.T) {
	f, err := ConvertMessage([]byte(`{"t":1,"cls":"0x20000004","src":"can0","data":"00","err":true}`))
	if err != nil {
		t.Fatalf("ConvertMessage: %v", err)
	}
	if !f.IsError {
		t.Fatalf("expected error-tagged frame")
	}
}

func TestConvertMessageRejectsGarbage(t *testing.T) {
	for _, payload := range []string{
		`not json`,
		`{"t":1,"src":"0x21","data":"00"}`,
		`{"t":1,"cls":"61444","data":"00"}`,
		`{"t":1,"cls":"61444","src":"0x21","data":"zz"}`,
	} {
		if _, err := ConvertMessage([]byte(payload)); err == nil {
			t.Fatalf("expected error for %q", payload)
		}
	}
}
