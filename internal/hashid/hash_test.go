package hashid

import (
	"path/filepath"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid", "8aaa9dc13a0c5839fe4a277756798c609c53fac6fa2290314ecfef9041065873", false},
		{"too short", "8aaa9dc13a0c5839fe4a277756798c609c53fac6fa2290314ecfef90410658", true},
		{"too long", "8aaa9dc13a0c5839fe4a277756798c609c53fac6fa2290314ecfef9041065873a", true},
		{"non-hex", "zzzz9dc13a0c5839fe4a277756798c609c53fac6fa2290314ecfef904106587", true},
		{"empty", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := Parse(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Parse(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err == nil && h.String() != tt.input {
				t.Errorf("Parse(%q).String() = %q, want %q", tt.input, h.String(), tt.input)
			}
		})
	}
}

func TestSumRoundTrip(t *testing.T) {
	data := []byte("default 0.0.0.0\nloopback 127.0.0.0\nlink-local 169.254.0.0\n")
	h := Sum(data)

	d := Hasher()
	if _, err := d.Write(data); err != nil {
		t.Fatal(err)
	}
	streamed := d.Sum()

	if h != streamed {
		t.Errorf("Sum and streamed Digester disagree: %s vs %s", h, streamed)
	}
}

func TestShort(t *testing.T) {
	h, err := Parse("8aaa9dc13a0c5839fe4a277756798c609c53fac6fa2290314ecfef9041065873")
	if err != nil {
		t.Fatal(err)
	}
	if got, want := h.Short(), "8aaa9dc13a0c"; got != want {
		t.Errorf("Short() = %q, want %q", got, want)
	}
}

func TestLoosePath(t *testing.T) {
	h, err := Parse("8aaa9dc13a0c5839fe4a277756798c609c53fac6fa2290314ecfef9041065873")
	if err != nil {
		t.Fatal(err)
	}
	got, err := LoosePath(KindFileContent, h)
	if err != nil {
		t.Fatal(err)
	}
	want := "8a/aa9dc13a0c5839fe4a277756798c609c53fac6fa2290314ecfef9041065873.file"
	if filepath.ToSlash(got) != want {
		t.Errorf("LoosePath = %q, want %q", got, want)
	}
}

func TestIsZero(t *testing.T) {
	var h Hash
	if !h.IsZero() {
		t.Error("zero value Hash.IsZero() = false, want true")
	}
	h2 := Sum([]byte("x"))
	if h2.IsZero() {
		t.Error("non-zero Hash.IsZero() = true, want false")
	}
}
