package idhash

import (
	"strings"
	"testing"
	"time"
)

func TestContent(t *testing.T) {
	got := Content([]byte("abc"))
	want := "sha256:ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got != want {
		t.Errorf("Content() = %s, want %s", got, want)
	}
	if len(Hex([]byte("abc"))) != 64 {
		t.Errorf("Hex() length = %d, want 64", len(Hex([]byte("abc"))))
	}
}

func TestCanonicalJSON_SortsKeys(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{
			name: "flat map",
			in:   map[string]any{"b": 1, "a": "x"},
			want: `{"a":"x","b":1}`,
		},
		{
			name: "nested struct",
			in: struct {
				Z string         `json:"z"`
				A map[string]int `json:"a"`
			}{Z: "<z>", A: map[string]int{"y": 2, "x": 1}},
			want: `{"a":{"x":1,"y":2},"z":"<z>"}`,
		},
		{
			name: "numbers kept as written",
			in:   map[string]any{"n": 0.1, "m": 1e21},
			want: `{"m":1e+21,"n":0.1}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CanonicalJSON(tt.in)
			if err != nil {
				t.Fatalf("CanonicalJSON() error = %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("CanonicalJSON() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestSignature_Determinism(t *testing.T) {
	a := map[string]any{"decision": "ALLOW", "size_multiplier": 1.25, "trade_id": "T1"}
	b := map[string]any{"trade_id": "T1", "size_multiplier": 1.25, "decision": "ALLOW"}

	sa, err := Signature(a)
	if err != nil {
		t.Fatal(err)
	}
	sb, err := Signature(b)
	if err != nil {
		t.Fatal(err)
	}
	if sa != sb {
		t.Errorf("Signature() depends on key order: %s != %s", sa, sb)
	}

	b["size_multiplier"] = 1.5
	sc, _ := Signature(b)
	if sa == sc {
		t.Error("Different field value should produce different signature")
	}
}

func TestScoreboardID(t *testing.T) {
	ts := time.Date(2026, 3, 4, 5, 6, 7, 0, time.FixedZone("X", 3600))
	hash := Content([]byte("snapshot"))

	got := ScoreboardID(ts, hash)
	want := "sb_20260304T040607Z_" + strings.TrimPrefix(hash, Prefix)[:12]
	if got != want {
		t.Errorf("ScoreboardID() = %s, want %s", got, want)
	}
}
