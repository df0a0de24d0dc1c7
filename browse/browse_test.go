package browse

import (
	"context"
	"testing"
)

func TestParseEngine(t *testing.T) {
	// WHAT: Engine identifiers of the form name-WxH select the viewport;
	// anything else falls back to the default.
	cases := []struct {
		engine string
		w, h   int
	}{
		{"chromium-1280x800", 1280, 800},
		{"chromium-375x812", 375, 812},
		{"firefox-1920x1080", 1920, 1080},
		{"chromium", 1280, 800},
		{"", 1280, 800},
		{"chromium-0x0", 1280, 800},
		{"chromium-wide", 1280, 800},
	}
	for _, tc := range cases {
		w, h := ParseEngine(tc.engine)
		if w != tc.w || h != tc.h {
			t.Errorf("ParseEngine(%q) = %dx%d, want %dx%d", tc.engine, w, h, tc.w, tc.h)
		}
	}
}

func TestSnapshot_RejectsPrivateTargets(t *testing.T) {
	// WHAT: Without AllowPrivate, loopback targets are refused before any
	// browser work happens.
	p := New(Config{})
	if _, err := p.Snapshot(context.Background(), "http://127.0.0.1/admin", "chromium-1280x800"); err == nil {
		t.Fatal("loopback URL accepted")
	}
	if _, err := p.Snapshot(context.Background(), "file:///etc/passwd", "chromium-1280x800"); err == nil {
		t.Fatal("file scheme accepted")
	}
}
