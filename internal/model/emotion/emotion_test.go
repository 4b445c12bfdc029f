package emotion

import "testing"

func TestCountsTotalAndMaps(t *testing.T) {
	var c Counts
	c.Add(NewVector(VeryHappy, Surprised))
	c.Add(NewVector(VeryHappy))
	c.Add(Vector{})

	if got := c.Get(VeryHappy); got != 2 {
		t.Fatalf("expected vhappy=2, got %d", got)
	}
	if got := c.Total(); got != 3 {
		t.Fatalf("expected total=3, got %d", got)
	}

	m := c.Map()
	if len(m) != NumCategories {
		t.Fatalf("expected %d keys, got %d", NumCategories, len(m))
	}
	if _, ok := m["total"]; ok {
		t.Fatal("Map must not carry total")
	}

	withTotal := c.MapWithTotal()
	if withTotal["total"] != 3 || withTotal["surprised"] != 1 {
		t.Fatalf("unexpected map: %v", withTotal)
	}
}

func TestZeroCountsReportEveryKey(t *testing.T) {
	var c Counts
	m := c.MapWithTotal()
	for _, cat := range Categories {
		if n, ok := m[cat.Key()]; !ok || n != 0 {
			t.Fatalf("expected %s=0 present, got %d (present=%v)", cat.Key(), n, ok)
		}
	}
}

func TestVectorRendering(t *testing.T) {
	v := NewVector(VeryHappy, Confused)

	if got := v.String(); got != "[1,0,0,0,0,0,0,1]" {
		t.Fatalf("unexpected string %s", got)
	}
	if got := v.Flagged(); len(got) != 2 || got[0] != "vhappy" || got[1] != "confused" {
		t.Fatalf("unexpected flagged %v", got)
	}
	if v.Count() != 2 {
		t.Fatalf("expected 2 flags, got %d", v.Count())
	}
}

func TestCategoryByKey(t *testing.T) {
	for _, cat := range Categories {
		got, ok := CategoryByKey(cat.Key())
		if !ok || got != cat {
			t.Fatalf("round trip failed for %s", cat.Key())
		}
	}
	if _, ok := CategoryByKey("angry"); ok {
		t.Fatal("unknown key should not resolve")
	}
}
