package units

import (
	"strings"
	"testing"
	"time"
)

func TestIsTimezoneValid(t *testing.T) {
	tests := []struct {
		name     string
		timezone string
		expected bool
	}{
		{"valid UTC", "UTC", true},
		{"valid US Eastern", "US/Eastern", true},
		{"valid IANA name", "America/New_York", true},
		{"invalid", "Invalid/Timezone", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := IsTimezoneValid(tt.timezone)
			if res != tt.expected {
				t.Errorf("IsTimezoneValid(%s) = %v, want %v", tt.timezone, res, tt.expected)
			}
		})
	}
}

func TestIsCommonTimezone(t *testing.T) {
	if !IsCommonTimezone("UTC") {
		t.Error("expected UTC to be a common timezone")
	}
	if !IsCommonTimezone("America/New_York") {
		t.Error("expected America/New_York to be a common timezone")
	}
	// Valid in the tz database but not in the curated list
	if IsCommonTimezone("US/Eastern") {
		t.Error("expected US/Eastern to not be in the curated list")
	}
}

func TestGetValidTimezonesString(t *testing.T) {
	res := GetValidTimezonesString()
	if res == "" {
		t.Fatal("GetValidTimezonesString returned empty string")
	}
	expected := []string{"UTC", "America/New_York", "Europe/Berlin", "Pacific/Auckland"}
	for _, s := range expected {
		if !strings.Contains(res, s) {
			t.Fatalf("GetValidTimezonesString missing %s", s)
		}
	}
}

func TestConvertTime(t *testing.T) {
	utcTime := time.Date(2025, 9, 13, 12, 0, 0, 0, time.UTC)

	t.Run("UTC to UTC", func(t *testing.T) {
		out, err := ConvertTime(utcTime, "UTC")
		if err != nil {
			t.Fatalf("ConvertTime error: %v", err)
		}
		if !out.Equal(utcTime) {
			t.Fatalf("ConvertTime returned %v, want %v", out, utcTime)
		}
	})

	t.Run("UTC to New York", func(t *testing.T) {
		out, err := ConvertTime(utcTime, "America/New_York")
		if err != nil {
			t.Fatalf("ConvertTime error: %v", err)
		}
		// Same instant, displayed in EDT (-04:00 in September)
		if !out.Equal(utcTime) {
			t.Fatalf("ConvertTime changed the instant: %v", out)
		}
		if out.Hour() != 8 {
			t.Errorf("expected hour 8 in New York, got %d", out.Hour())
		}
	})

	t.Run("invalid timezone", func(t *testing.T) {
		_, err := ConvertTime(utcTime, "Invalid/Timezone")
		if err == nil {
			t.Fatal("expected error for invalid timezone")
		}
	})
}

func TestGetTimezoneLabel(t *testing.T) {
	if got := GetTimezoneLabel("UTC"); got != "UTC (+00:00)" {
		t.Fatalf("GetTimezoneLabel(UTC) = %q, want 'UTC (+00:00)'", got)
	}
	// Unlisted timezones fall back to the raw ID
	if got := GetTimezoneLabel("Mars/Olympus"); got != "Mars/Olympus" {
		t.Fatalf("GetTimezoneLabel fallback = %q, want 'Mars/Olympus'", got)
	}
}
