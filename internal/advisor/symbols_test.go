package advisor

import (
	"testing"
)

var knownInstruments = []string{"AAPL", "TSLA", "BRK.B", "NVDA"}

func TestExtractInstrumentsSingleMention(t *testing.T) {
	got := ExtractInstruments("What about TSLA?", knownInstruments)
	if len(got) != 1 || got[0] != "TSLA" {
		t.Fatalf("expected [TSLA], got %v", got)
	}
}

func TestExtractInstrumentsMultipleMentions(t *testing.T) {
	got := ExtractInstruments("Compare AAPL and NVDA", knownInstruments)
	if len(got) != 2 {
		t.Fatalf("expected 2 symbols, got %v", got)
	}
	symbols := map[string]bool{}
	for _, s := range got {
		symbols[s] = true
	}
	if !symbols["AAPL"] || !symbols["NVDA"] {
		t.Fatalf("expected AAPL and NVDA, got %v", got)
	}
}

func TestExtractInstrumentsNoMention(t *testing.T) {
	got := ExtractInstruments("What looks good right now?", knownInstruments)
	if len(got) != 0 {
		t.Fatalf("expected empty, got %v", got)
	}
}

func TestExtractInstrumentsCaseInsensitive(t *testing.T) {
	got := ExtractInstruments("how's tsla doing?", knownInstruments)
	if len(got) != 1 || got[0] != "TSLA" {
		t.Fatalf("expected [TSLA], got %v", got)
	}
}

func TestExtractInstrumentsDeduplication(t *testing.T) {
	got := ExtractInstruments("AAPL AAPL AAPL is the best AAPL", knownInstruments)
	if len(got) != 1 || got[0] != "AAPL" {
		t.Fatalf("expected [AAPL], got %v", got)
	}
}

func TestExtractInstrumentsDottedTicker(t *testing.T) {
	got := ExtractInstruments("Is BRK.B still a buy?", knownInstruments)
	if len(got) != 1 || got[0] != "BRK.B" {
		t.Fatalf("expected [BRK.B], got %v", got)
	}
}
