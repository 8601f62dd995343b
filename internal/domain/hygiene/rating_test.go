package hygiene

import "testing"

func TestNumericTier(t *testing.T) {
	t.Parallel()

	cases := []struct {
		value string
		tier  int
		ok    bool
	}{
		{"0", 0, true},
		{"2", 2, true},
		{"5", 5, true},
		{"6", 0, false},
		{"-1", 0, false},
		{"Exempt", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		tier, ok := NumericTier(tc.value)
		if tier != tc.tier || ok != tc.ok {
			t.Fatalf("NumericTier(%q) = %d,%v, want %d,%v", tc.value, tier, ok, tc.tier, tc.ok)
		}
	}
}

func TestNormalizeRating(t *testing.T) {
	t.Parallel()

	if got := NormalizeRating(""); got != RatingUnknown {
		t.Fatalf("NormalizeRating(\"\") = %q, want %q", got, RatingUnknown)
	}
	// Present values pass through verbatim, even malformed ones.
	if got := NormalizeRating("banana"); got != "banana" {
		t.Fatalf("NormalizeRating(banana) = %q", got)
	}
	if got := NormalizeRating("3"); got != "3" {
		t.Fatalf("NormalizeRating(3) = %q", got)
	}
}

func TestTierOrderWorstFirst(t *testing.T) {
	t.Parallel()

	ordered := []string{"0", "1", "5", RatingImprovementRequired, RatingPass, RatingAwaitingInspection, RatingExempt, "garbage"}
	for i := 1; i < len(ordered); i++ {
		if TierOrder(ordered[i-1]) > TierOrder(ordered[i]) {
			t.Fatalf("TierOrder(%q)=%d > TierOrder(%q)=%d", ordered[i-1], TierOrder(ordered[i-1]), ordered[i], TierOrder(ordered[i]))
		}
	}
}

func TestDetectJurisdiction(t *testing.T) {
	t.Parallel()

	scotland := DetectJurisdiction(SchemeFHIS, "Aberdeen City")
	if scotland.Jurisdiction != JurisdictionScotland || scotland.RatingType != "pass-fail" {
		t.Fatalf("FHIS = %+v", scotland)
	}
	if scotland.ReinspectionAvailable {
		t.Fatal("FHIS should not offer FHRS reinspection rights")
	}

	wales := DetectJurisdiction(SchemeFHRS, "Cardiff")
	if wales.Jurisdiction != JurisdictionWales {
		t.Fatalf("Cardiff = %+v", wales)
	}
	if !wales.DisplayMandatory {
		t.Fatal("Wales display should be mandatory")
	}

	ni := DetectJurisdiction(SchemeFHRS, "Belfast")
	if ni.Jurisdiction != JurisdictionNorthernIreland || ni.DisplayMandatory {
		t.Fatalf("Belfast = %+v", ni)
	}

	england := DetectJurisdiction(SchemeFHRS, "City of London")
	if england.Jurisdiction != JurisdictionEngland || england.DisplayMandatory {
		t.Fatalf("City of London = %+v", england)
	}
}
