package tone

import (
	"errors"
	"testing"
)

func TestParseLabel(t *testing.T) {
	cases := []struct {
		in   string
		want Label
	}{
		{"casual", Casual},
		{" Casual_Polite \n", CasualPolite},
		{"FORMAL", Formal},
		{"narrative", Narrative},
	}
	for _, tc := range cases {
		got, err := ParseLabel(tc.in)
		if err != nil || got != tc.want {
			t.Fatalf("ParseLabel(%q) = %v, %v; want %v", tc.in, got, err, tc.want)
		}
	}

	if _, err := ParseLabel("sarcastic"); !errors.Is(err, ErrUnclear) {
		t.Fatalf("expected ErrUnclear, got %v", err)
	}
}
