package analysis

import "testing"

func TestKeywords(t *testing.T) {
	text := "Indexes make queries fast. Composite indexes make range queries fast too."

	got := Keywords(text, 3)
	if len(got) != 3 {
		t.Fatalf("want 3 keywords, got %v", got)
	}
	if got[0].Word != "indexes" || got[0].Count != 2 {
		t.Errorf("want indexes(2) first, got %+v", got[0])
	}
	// "make", "queries", and "fast" all occur twice; first appearance wins.
	if got[1].Word != "make" || got[2].Word != "queries" {
		t.Errorf("tie-break by first appearance broken: %+v", got)
	}
}

func TestKeywordsSkipsStopwords(t *testing.T) {
	got := Keywords("the and with for this that", 10)
	if len(got) != 0 {
		t.Errorf("stopwords leaked through: %v", got)
	}
}

func TestSentimental(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"positive", "This approach works great, clean and fast", "positive"},
		{"negative", "Slow, broken, and the crash is painful", "negative"},
		{"neutral", "The function returns an integer", "neutral"},
		{"mixed", "Great idea but broken implementation", "neutral"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Sentimental(tt.text)
			if got.Label != tt.want {
				t.Errorf("want %s, got %+v", tt.want, got)
			}
		})
	}
}

func TestEntities(t *testing.T) {
	text := "ask Grace Hopper at grace@navy.mil, docs at https://example.com/rfc"

	got := Entities(text)
	kinds := make(map[string]string)
	for _, e := range got {
		kinds[e.Kind] = e.Text
	}
	if kinds["email"] != "grace@navy.mil" {
		t.Errorf("email not spotted: %v", got)
	}
	if kinds["url"] != "https://example.com/rfc" {
		t.Errorf("url not spotted: %v", got)
	}
	if kinds["name"] != "Grace Hopper" {
		t.Errorf("name not spotted: %v", got)
	}
}

func TestSimilarity(t *testing.T) {
	if s := Similarity("go routines are cheap", "go routines are cheap"); s != 1 {
		t.Errorf("identical texts: want 1, got %f", s)
	}
	if s := Similarity("alpha beta gamma", "delta epsilon zeta"); s != 0 {
		t.Errorf("disjoint texts: want 0, got %f", s)
	}
	if s := Similarity("", ""); s != 1 {
		t.Errorf("two empty texts: want 1, got %f", s)
	}
}

func TestDuplicates(t *testing.T) {
	texts := []string{
		"use context for cancellation in servers",
		"use context for cancellation in servers always",
		"tune the garbage collector with GOGC",
	}

	got := Duplicates(texts, 0.8)
	if len(got) != 1 {
		t.Fatalf("want one duplicate pair, got %v", got)
	}
	if got[0].A != 0 || got[0].B != 1 {
		t.Errorf("wrong pair: %+v", got[0])
	}
}
