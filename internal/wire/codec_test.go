package wire

import (
	"bytes"
	"errors"
	"testing"

	"github.com/nerrad567/gray-logic-gpio/internal/gpio"
)

func TestNew(t *testing.T) {
	tests := []struct {
		format  string
		want    string
		wantErr bool
	}{
		{format: "", want: FormatJSON},
		{format: "json", want: FormatJSON},
		{format: "CBOR", want: FormatCBOR},
		{format: " cbor ", want: FormatCBOR},
		{format: "xml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			c, err := New(tt.format)
			if tt.wantErr {
				if !errors.Is(err, ErrUnknownFormat) {
					t.Errorf("New() error = %v, want ErrUnknownFormat", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			if c.Name() != tt.want {
				t.Errorf("Name() = %q, want %q", c.Name(), tt.want)
			}
		})
	}
}

func TestJSONFieldNames(t *testing.T) {
	got, err := JSON.Marshal(FromAnnouncement(gpio.Announcement{
		Pin: 11, State: true, Mode: gpio.Input, Resistor: gpio.PullUp,
	}))
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	want := `{"pin":11,"state":true,"mode":"input","resistor":"PullUp"}`
	if string(got) != want {
		t.Errorf("Marshal() = %s, want %s", got, want)
	}
}

func TestJSONOmitsUnspecifiedResistor(t *testing.T) {
	got, _ := JSON.Marshal(FromAnnouncement(gpio.Announcement{Pin: 20, Mode: gpio.Output}))
	if bytes.Contains(got, []byte("resistor")) {
		t.Errorf("Marshal() = %s, want no resistor field", got)
	}
}

func TestCBORIsDeterministic(t *testing.T) {
	a := FromAnnouncement(gpio.Announcement{Pin: 11, State: true, Mode: gpio.Input, Resistor: gpio.PullDown})

	first, err := CBOR.Marshal(a)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	for i := 0; i < 10; i++ {
		again, _ := CBOR.Marshal(a)
		if !bytes.Equal(first, again) {
			t.Fatal("CBOR encoding differs between calls")
		}
	}

	var back PinState
	if err := CBOR.Unmarshal(first, &back); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if back != a {
		t.Errorf("decoded %+v, want %+v", back, a)
	}
}

func TestDecodeErrors(t *testing.T) {
	for _, c := range []Codec{JSON, CBOR} {
		var cmd Command
		if err := c.Unmarshal([]byte{0xff, 0x00, 0x01}, &cmd); !errors.Is(err, ErrDecode) {
			t.Errorf("%s Unmarshal() error = %v, want ErrDecode", c.Name(), err)
		}
	}
}

func TestCommandReport(t *testing.T) {
	tests := []struct {
		name    string
		cmd     Command
		pin     int
		want    gpio.Report
		wantErr bool
	}{
		{
			name: "input with resistor",
			cmd:  Command{State: true, Mode: "in", Resistor: "pu"},
			pin:  11,
			want: gpio.Report{Pin: 11, State: true, Mode: gpio.Input, Resistor: gpio.PullUp},
		},
		{
			name: "output without resistor",
			cmd:  Command{Pin: 12, Mode: "output"},
			pin:  12,
			want: gpio.Report{Pin: 12, Mode: gpio.Output},
		},
		{name: "pin mismatch", cmd: Command{Pin: 3, Mode: "input"}, pin: 5, wantErr: true},
		{name: "missing mode", cmd: Command{State: true}, pin: 5, wantErr: true},
		{name: "bad resistor", cmd: Command{Mode: "input", Resistor: "sideways"}, pin: 5, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.cmd.Report(tt.pin)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidPayload) {
					t.Errorf("Report() error = %v, want ErrInvalidPayload", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Report() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Report() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestNewAck(t *testing.T) {
	ack := NewAck("c1", 11, gpio.Rising, nil)
	if ack.Edge != "rising" || ack.Error != "" || ack.ID != "c1" {
		t.Errorf("NewAck() = %+v", ack)
	}

	ack = NewAck("c2", 11, gpio.Rising, errors.New("stale"))
	if ack.Edge != "unknown" || ack.Error != "stale" {
		t.Errorf("NewAck() with error = %+v", ack)
	}
}
