package normalize

import (
	"math"
	"testing"
)

func ptr(v float64) *float64 { return &v }

// --- Price Tests ---

func TestPrice(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   int64
		wantOK bool
	}{
		{"crore with symbol", "₹ 1.25 Cr", 12_500_000, true},
		{"crore word", "₹2 Crore", 20_000_000, true},
		{"lac", "₹ 50 Lac", 5_000_000, true},
		{"lakhs", "45 Lakhs", 4_500_000, true},
		{"single letter lakh", "85 L", 8_500_000, true},
		{"attached lakh", "85L", 8_500_000, true},
		{"thousand", "25 k", 25_000, true},
		{"thousands separators", "₹ 1,25,00,000", 12_500_000, true},
		{"plain number", "9500000", 9_500_000, true},
		{"rounding", "₹1.43 Cr", 14_300_000, true},
		{"combined total and rate", "₹1.43 Cr₹9,142 per sqft", 14_300_000, true},
		{"crore range", "₹1.2 - 1.5 Cr", 12_000_000, true},
		{"lac range", "₹ 95 - 99 Lac", 9_500_000, true},
		{"compact range", "1.2-1.5 Cr", 12_000_000, true},
		{"range with onwards", "₹ 45 L - 1.1 Cr onwards", 4_500_000, true},
		{"unit after rate segment ignored", "₹ 9,500 ₹ 2 Cr", 9_500, true},
		{"stray l in word", "45 local", 45, true},
		{"stray cr in word", "72 credit", 72, true},
		{"no digits", "Price on Request", 0, false},
		{"empty", "", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Price(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("Price(%q) ok = %v, want %v", tt.input, ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("Price(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

// --- Area Tests ---

func TestArea(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   float64
		wantOK bool
	}{
		{"sqft", "1200 sq.ft", 1200, true},
		{"sqft no dot", "1,450 sqft", 1450, true},
		{"sqm", "100 sq.m", 1076.4, true},
		{"sqm compact", "100 sqm", 1076.4, true},
		{"decimal", "1234.5 sq.ft", 1234.5, true},
		{"sqft with sqm aside", "1200 sq.ft (111.48 sq.m)", 1200, true},
		{"bare number with sqm marker", "Carpet: 80 | sq.m", 861.12, true},
		{"sqyd", "200 sq.yd", 1800, true},
		{"sq yards", "150 sq. yards", 1350, true},
		{"square yards", "120 Square Yards", 1080, true},
		{"gaj", "100 gaj", 900, true},
		{"acre", "1 acre", 43_560, true},
		{"acres decimal", "2.5 Acres", 108_900, true},
		{"sqyd with sqft aside", "200 sq.yd (1800 sq.ft)", 1800, true},
		{"hyphenated sqft", "1650 Sq-ft", 1650, true},
		{"no unit", "1500", 1500, true},
		{"acre elsewhere ignored", "1500 near a 5 acre park", 1500, true},
		{"no digits", "Area on request", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Area(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("Area(%q) ok = %v, want %v", tt.input, ok, tt.wantOK)
			}
			if math.Abs(got-tt.want) > 0.01 {
				t.Errorf("Area(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

// --- ParseLocation Tests ---

func TestParseLocation(t *testing.T) {
	tests := []struct {
		name  string
		title string
		url   string
		want  Location
	}{
		{
			name:  "society sector locality",
			title: "3 BHK Flat for Sale in Godrej Woods, Sector 43, Noida",
			want:  Location{Society: "Godrej Woods", Sector: "Sector 43", Locality: "Noida"},
		},
		{
			name:  "sector only",
			title: "3 BHK Flat in Sector 115, Noida",
			want:  Location{Society: DefaultSociety, Sector: "Sector 115", Locality: "Noida"},
		},
		{
			name:  "hyphenated sector with suffix",
			title: "2 BHK Apartment in ATS Pristine, Sector-150a, Noida",
			want:  Location{Society: "ATS Pristine", Sector: "Sector 150A", Locality: "Noida"},
		},
		{
			name:  "sec abbreviation",
			title: "Villa in Mahagun Mansion, Sec 78, Noida",
			want:  Location{Society: "Mahagun Mansion", Sector: "Sector 78", Locality: "Noida"},
		},
		{
			name:  "flat token rejected as society",
			title: "Flat for sale in Flat No 4, Sector 12, Gurgaon",
			want:  Location{Society: DefaultSociety, Sector: "Sector 12", Locality: "Gurgaon"},
		},
		{
			name:  "sector from url",
			title: "4 BHK Flat in Supertech Capetown, Noida",
			url:   "https://www.magicbricks.com/propertyDetails/4-BHK-Flat-FOR-Sale-Sector-74-in-Noida&id=abc",
			want:  Location{Society: DefaultSociety, Sector: "Sector 74", Locality: "Noida"},
		},
		{
			name:  "known area",
			title: "Villa in Rosewood City, DLF Phase 2, Gurgaon",
			want:  Location{Society: "Rosewood City", Sector: "DLF Phase 2", Locality: "Gurgaon"},
		},
		{
			name:  "second to last token",
			title: "3 BHK in Tata Primanti, Sector Road Extension, Gurgaon",
			want:  Location{Society: "Tata Primanti", Sector: "Sector Road Extension", Locality: "Gurgaon"},
		},
		{
			name:  "single token fallback",
			title: "Spacious Penthouse",
			want:  Location{Society: DefaultSociety, Sector: "", Locality: "Spacious Penthouse"},
		},
		{
			name:  "no title",
			title: "",
			want:  Location{Society: DefaultSociety, Sector: "", Locality: DefaultRegion},
		},
		{
			name:  "society equal to sector is reset",
			title: "Plot in Sohna Road, Sohna Road, Gurgaon",
			want:  Location{Society: DefaultSociety, Sector: "Sohna Road", Locality: "Gurgaon"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseLocation(tt.title, tt.url)
			if got != tt.want {
				t.Errorf("ParseLocation(%q) = %+v, want %+v", tt.title, got, tt.want)
			}
		})
	}
}

// --- RecoverAreaAndRate Tests ---

func TestRecoverAreaAndRate_SquareYardCorrection(t *testing.T) {
	rate, area := RecoverAreaAndRate(14_400_000, "", "₹1.44 Cr₹120000 per sqft", ptr(120))
	if rate == nil || area == nil {
		t.Fatalf("RecoverAreaAndRate() = %v, %v, want both set", rate, area)
	}
	if *area != 1080 {
		t.Errorf("area = %v, want 1080", *area)
	}
	if math.Abs(*rate-13333.33) > 0.01 {
		t.Errorf("rate = %v, want 13333.33", *rate)
	}
}

func TestRecoverAreaAndRate_AreaFromTitle(t *testing.T) {
	_, area := RecoverAreaAndRate(9_000_000, "3 BHK 1650 Sq-ft Flat in Sector 50, Noida", "₹90 Lac", ptr(3))
	if area == nil || *area != 1650 {
		t.Fatalf("area = %v, want 1650", area)
	}
}

func TestRecoverAreaAndRate_AreaFromPriceAndRate(t *testing.T) {
	rate, area := RecoverAreaAndRate(9_142_000, "2 BHK Flat", "₹91.42 Lac ₹9,142 per sqft", nil)
	if rate == nil || *rate != 9142 {
		t.Fatalf("rate = %v, want 9142", rate)
	}
	if area == nil || *area != 1000 {
		t.Fatalf("area = %v, want 1000", area)
	}
}

func TestRecoverAreaAndRate_NothingToRecover(t *testing.T) {
	rate, area := RecoverAreaAndRate(5_000_000, "Flat", "₹50 Lac", nil)
	if rate != nil || area != nil {
		t.Errorf("RecoverAreaAndRate() = %v, %v, want nil, nil", rate, area)
	}
}

func TestRecoverAreaAndRate_DoesNotMutateInput(t *testing.T) {
	in := ptr(120)
	RecoverAreaAndRate(14_400_000, "", "₹120000 per sqft", in)
	if *in != 120 {
		t.Errorf("input area mutated to %v", *in)
	}
}

// --- City Tests ---

func TestCity(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"gurgaon", "Gurugram"},
		{"Gurugram", "Gurugram"},
		{"Noida Extension", "Greater Noida West"},
		{"greater  noida west", "Greater Noida West"},
		{"new delhi", "New Delhi"},
		{"NOIDA", "Noida"},
	}
	for _, tt := range tests {
		if got := City(tt.input); got != tt.want {
			t.Errorf("City(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
