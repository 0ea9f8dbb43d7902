package internaldefs

import (
	"strings"
	"testing"

	goGuard "github.com/MrEthical07/goGuard"
)

func TestEveryEngineCounterIsExportedOnce(t *testing.T) {
	seen := map[goGuard.MetricID]string{}
	names := map[string]bool{}
	for _, fam := range Families {
		if names[fam.Name] {
			t.Fatalf("duplicate family %q", fam.Name)
		}
		names[fam.Name] = true
		if !strings.HasPrefix(fam.Name, "goguard_") || !strings.HasSuffix(fam.Name, "_total") {
			t.Fatalf("unexpected family name %q", fam.Name)
		}
		if fam.Flow == "" || len(fam.Series) == 0 {
			t.Fatalf("family %q lacks flow or series", fam.Name)
		}
		for _, s := range fam.Series {
			if prev, ok := seen[s.ID]; ok {
				t.Fatalf("metric %d exported by %q and %q", s.ID, prev, fam.Name)
			}
			seen[s.ID] = fam.Name
		}
	}

	for _, h := range HistogramDefs {
		seen[h.ID] = h.Name
	}
	for id := goGuard.MetricLoginSuccess; id <= goGuard.MetricLoginLatency; id++ {
		if _, ok := seen[id]; !ok {
			t.Fatalf("metric %d is not exported", id)
		}
	}
}

func TestTokenSeriesCarryPurpose(t *testing.T) {
	for _, fam := range Families {
		if fam.Flow != FlowToken {
			continue
		}
		for _, s := range fam.Series {
			if len(s.Labels) != 2 || s.Labels[0].Name != "purpose" || s.Labels[1].Name != "op" {
				t.Fatalf("token series without purpose/op labels: %+v", s)
			}
		}
		return
	}
	t.Fatal("no token family")
}

func TestBucketHelpers(t *testing.T) {
	if len(HistogramBounds) != 8 {
		t.Fatalf("bounds must have 8 entries")
	}
	got := CumulativeBuckets(NormalizeBuckets([]uint64{1, 2, 3}))
	want := [8]uint64{1, 3, 6, 6, 6, 6, 6, 6}
	if got != want {
		t.Fatalf("got %v, want %v", got, want)
	}
}
