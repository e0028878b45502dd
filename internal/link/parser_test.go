package link

import "testing"

func TestParsePublic(t *testing.T) {
	ref, ok := Parse("https://t.me/news/42")
	if !ok {
		t.Fatal("expected a match")
	}
	if ref.Channel != "news" || ref.MessageID != 42 || ref.Private {
		t.Fatalf("unexpected reference: %+v", ref)
	}
}

func TestParsePrivate(t *testing.T) {
	ref, ok := Parse("https://t.me/c/555/42")
	if !ok {
		t.Fatal("expected a match")
	}
	if ref.Channel != "555" || ref.MessageID != 42 || !ref.Private {
		t.Fatalf("unexpected reference: %+v", ref)
	}
}

func TestParseAlias(t *testing.T) {
	ref, ok := Parse("http://telegram.me/updates/7")
	if !ok {
		t.Fatal("expected a match")
	}
	if ref.Channel != "updates" || ref.MessageID != 7 || ref.Private {
		t.Fatalf("unexpected reference: %+v", ref)
	}
}

func TestParseEmbedded(t *testing.T) {
	ref, ok := Parse("check this out https://t.me/golang/1234 really good")
	if !ok {
		t.Fatal("expected a match")
	}
	if ref.Channel != "golang" || ref.MessageID != 1234 {
		t.Fatalf("unexpected reference: %+v", ref)
	}
}

func TestParseNumericChannelIsPrivate(t *testing.T) {
	ref, ok := Parse("https://t.me/12345/9")
	if !ok {
		t.Fatal("expected a match")
	}
	if !ref.Private {
		t.Fatalf("numeric channel should be private: %+v", ref)
	}
	if ref.Channel != "12345" || ref.MessageID != 9 {
		t.Fatalf("unexpected reference: %+v", ref)
	}
}

func TestParseNoMatch(t *testing.T) {
	for _, text := range []string{
		"hello world",
		"https://t.me/justachannel",
		"https://example.com/news/42",
		"",
	} {
		if _, ok := Parse(text); ok {
			t.Errorf("unexpected match for %q", text)
		}
	}
}

func TestParseFirstMatchWins(t *testing.T) {
	ref, ok := Parse("https://t.me/first/1 and https://t.me/c/99/2")
	if !ok {
		t.Fatal("expected a match")
	}
	if ref.Channel != "first" || ref.MessageID != 1 {
		t.Fatalf("expected the first link to win, got %+v", ref)
	}
}

func TestURL(t *testing.T) {
	pub := Reference{Channel: "news", MessageID: 42}
	if got := pub.URL(); got != "https://t.me/news/42" {
		t.Fatalf("unexpected URL %q", got)
	}
	priv := Reference{Channel: "555", MessageID: 42, Private: true}
	if got := priv.URL(); got != "https://t.me/c/555/42" {
		t.Fatalf("unexpected URL %q", got)
	}
}
