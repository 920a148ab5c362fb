package robot

import "testing"

func TestParseColor(t *testing.T) {
	cases := map[string]Color{
		"red":     ColorRed,
		"RED":     ColorRed,
		"Blue":    ColorBlue,
		" Blue ":  ColorUnrecognized,
		"red ":    ColorUnrecognized,
		"green":   ColorGreen,
		"yellow":  ColorUnrecognized,
		"":        ColorUnrecognized,
		"red-ish": ColorUnrecognized,
	}
	for marker, want := range cases {
		if got := ParseColor(marker); got != want {
			t.Errorf("ParseColor(%q) = %v, want %v", marker, got, want)
		}
	}
}

func TestColorString(t *testing.T) {
	if ColorGreen.String() != "GREEN" {
		t.Fatalf("unexpected name %q", ColorGreen.String())
	}
	if ColorUnrecognized.Recognized() {
		t.Fatal("unrecognized color reported as recognized")
	}
	if !ColorBlue.Recognized() {
		t.Fatal("blue should be recognized")
	}
}
