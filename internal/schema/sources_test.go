package schema

import "testing"

func TestParseSourcesColonAndDot(t *testing.T) {
	sources := ParseSources("clinic:appointment_slots, public.slots ,availability")
	if len(sources) != 3 {
		t.Fatalf("expected 3 sources, got %d", len(sources))
	}
	if sources[0].Schema != "clinic" || sources[0].Table != "appointment_slots" {
		t.Errorf("unexpected first source: %+v", sources[0])
	}
	if sources[1].Schema != "public" || sources[1].Table != "slots" {
		t.Errorf("unexpected second source: %+v", sources[1])
	}
	if sources[2].Schema != "" || sources[2].Table != "availability" {
		t.Errorf("unexpected bare source: %+v", sources[2])
	}
}

func TestParseSourcesEmptyFallsBackToDefaults(t *testing.T) {
	sources := ParseSources("")
	if len(sources) == 0 {
		t.Fatal("expected default sources")
	}
	if sources[0].Table != "appointment_slots" {
		t.Errorf("expected appointment_slots first, got %s", sources[0].Table)
	}
	for _, src := range sources {
		if src.FilterColumn == "" {
			t.Errorf("default source %s missing filter column", src.Table)
		}
	}
}

func TestParseSourcesSkipsBlankEntries(t *testing.T) {
	sources := ParseSources(" , appointment_slots , ")
	if len(sources) != 1 {
		t.Fatalf("expected 1 source, got %d", len(sources))
	}
}

func TestQualifiedQuotesIdentifiers(t *testing.T) {
	src := Source{Schema: "clinic", Table: "appointment_slots"}
	if got := src.Qualified(); got != `"clinic"."appointment_slots"` {
		t.Errorf("unexpected qualified name %s", got)
	}
	bare := Source{Table: "slots"}
	if got := bare.Qualified(); got != `"slots"` {
		t.Errorf("unexpected bare name %s", got)
	}
}
