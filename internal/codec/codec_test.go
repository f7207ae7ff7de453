package codec

import (
	"reflect"
	"testing"
)

func TestEncode(t *testing.T) {
	t.Parallel()

	t.Run("byte slice passes through raw", func(t *testing.T) {
		t.Parallel()

		p, err := Encode([]byte("raw bytes"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if p.Structured {
			t.Error("expected raw payload for []byte")
		}
		if string(p.Data) != "raw bytes" {
			t.Errorf("expected data to pass through, got %q", p.Data)
		}
	})

	t.Run("string passes through raw", func(t *testing.T) {
		t.Parallel()

		p, err := Encode("hello")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if p.Structured {
			t.Error("expected raw payload for string")
		}
		if string(p.Data) != "hello" {
			t.Errorf("expected data to pass through, got %q", p.Data)
		}
	})

	t.Run("map is structured", func(t *testing.T) {
		t.Parallel()

		p, err := Encode(map[string]int{"a": 1})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !p.Structured {
			t.Error("expected structured payload for map")
		}
	})

	t.Run("unencodable value returns error", func(t *testing.T) {
		t.Parallel()

		if _, err := Encode(make(chan int)); err == nil {
			t.Error("expected error for channel value")
		}
	})
}

func TestDecode(t *testing.T) {
	t.Parallel()

	t.Run("structured round trip", func(t *testing.T) {
		t.Parallel()

		p, err := Encode(map[string]any{"a": float64(1)})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		v, err := p.Decode()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		want := map[string]any{"a": float64(1)}
		if !reflect.DeepEqual(v, want) {
			t.Errorf("expected %v, got %v", want, v)
		}
	})

	t.Run("raw payload returns bytes", func(t *testing.T) {
		t.Parallel()

		p := Payload{Data: []byte("blob")}
		v, err := p.Decode()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		b, ok := v.([]byte)
		if !ok {
			t.Fatalf("expected []byte, got %T", v)
		}
		if string(b) != "blob" {
			t.Errorf("expected 'blob', got %q", b)
		}
	})

	t.Run("corrupt structured payload returns error", func(t *testing.T) {
		t.Parallel()

		p := Payload{Data: []byte("{not json"), Structured: true}
		if _, err := p.Decode(); err == nil {
			t.Error("expected error for corrupt payload")
		}
	})
}

func TestSnapshotRoundTrip(t *testing.T) {
	t.Parallel()

	structured, err := Encode(map[string]any{"b": float64(2)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	snapshot := map[string]Payload{
		"upload_10.0.0.5": structured,
		"raw_10.0.0.6":    {Data: []byte("bytes")},
	}

	encoded, err := EncodeSnapshot(snapshot)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !encoded.Structured {
		t.Error("expected snapshot payload to be structured")
	}

	decoded, err := DecodeSnapshot(encoded.Data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(decoded, snapshot) {
		t.Errorf("expected %v, got %v", snapshot, decoded)
	}
}
