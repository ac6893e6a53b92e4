package domain

import (
	"errors"
	"testing"
)

func TestParseClockTime(t *testing.T) {
	ct, err := ParseClockTime("09:30")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if ct.Hour != 9 || ct.Minute != 30 {
		t.Fatalf("ожидали 09:30, получили %s", ct)
	}

	for _, raw := range []string{"25:00", "9:75", "вчера", ""} {
		if _, err := ParseClockTime(raw); !errors.Is(err, ErrValidation) {
			t.Fatalf("значение %q должно давать ErrValidation, получили %v", raw, err)
		}
	}
}

func TestClockTimeString(t *testing.T) {
	ct := ClockTime{Hour: 7, Minute: 5}
	if ct.String() != "07:05" {
		t.Fatalf("ожидали 07:05, получили %s", ct)
	}
}

func TestCollapseTimesKeepsFirstOccurrence(t *testing.T) {
	times := []ClockTime{{Hour: 10}, {Hour: 14}, {Hour: 10}, {Hour: 18}, {Hour: 14}}
	out := CollapseTimes(times)
	if len(out) != 3 {
		t.Fatalf("ожидали 3 уникальных времени, получили %d", len(out))
	}
	if out[0].Hour != 10 || out[1].Hour != 14 || out[2].Hour != 18 {
		t.Fatalf("порядок первого вхождения нарушен: %v", out)
	}
}
