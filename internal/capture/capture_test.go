package capture

import (
	"errors"
	"testing"

	"github.com/DaveSmith227/vizspec/pkg/models"
)

func TestParseViewport(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    models.Viewport
		wantErr bool
	}{
		{"desktop", "1280x720", models.Viewport{Width: 1280, Height: 720}, false},
		{"mobile", "375x667", models.Viewport{Width: 375, Height: 667}, false},
		{"uppercase separator", "1920X1080", models.Viewport{Width: 1920, Height: 1080}, false},
		{"whitespace", " 800x600 ", models.Viewport{Width: 800, Height: 600}, false},
		{"missing height", "1280", models.Viewport{}, true},
		{"empty", "", models.Viewport{}, true},
		{"zero width", "0x720", models.Viewport{}, true},
		{"negative", "1280x-1", models.Viewport{}, true},
		{"junk", "widexhigh", models.Viewport{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseViewport(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseViewport(%q) expected error", tt.input)
				}
				if !errors.Is(err, models.ErrConfiguration) {
					t.Errorf("error should be a configuration error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseViewport(%q): %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseViewport(%q) = %+v, want %+v", tt.input, got, tt.want)
			}
		})
	}
}

func TestEngineClosedRejectsCapture(t *testing.T) {
	e := NewEngine(Options{Headless: true})
	if err := e.Close(); err != nil {
		t.Fatal(err)
	}
	_, err := e.acquire()
	if err == nil {
		t.Fatal("closed engine should refuse to launch")
	}
	if !errors.Is(err, models.ErrCapture) {
		t.Errorf("expected capture error, got %v", err)
	}
}

func TestDefaultSettleTimeout(t *testing.T) {
	e := NewEngine(Options{})
	if e.opts.SettleTimeout <= 0 {
		t.Error("engine should default the settle timeout")
	}
}
