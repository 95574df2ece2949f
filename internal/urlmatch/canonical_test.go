package urlmatch

import "testing"

func TestCanonicalize(t *testing.T) {
	strip := Options{StripTracking: true}
	tests := []struct {
		name string
		in   string
		opts Options
		want string
	}{
		{"lowercases host", "https://Mail.Google.COM/mail", Options{}, "https://mail.google.com/mail"},
		{"keeps path case", "https://example.com/Docs/A", Options{}, "https://example.com/Docs/A"},
		{"strips trailing slash", "https://example.com/app/", Options{}, "https://example.com/app"},
		{"strips every trailing slash", "https://example.com/app//", Options{}, "https://example.com/app"},
		{"keeps root", "https://example.com/", Options{}, "https://example.com/"},
		{"collapses slash-only path to root", "https://example.com///", Options{}, "https://example.com/"},
		{"empty path becomes root", "https://example.com", Options{}, "https://example.com/"},
		{"strips utm", "https://example.com/a?utm_source=x&id=7&utm_medium=y", strip, "https://example.com/a?id=7"},
		{"strips click ids", "https://example.com/a?fbclid=1&gclid=2&msclkid=3&q=go", strip, "https://example.com/a?q=go"},
		{"strips mailchimp and ga", "https://example.com/?mc_cid=1&mc_eid=2&_ga=3&_gl=4", strip, "https://example.com/"},
		{"strips ref and source", "https://example.com/p?ref=hn&source=feed", strip, "https://example.com/p"},
		{"tracking kept when disabled", "https://example.com/a?utm_source=x", Options{}, "https://example.com/a?utm_source=x"},
		{"keeps param order", "https://example.com/s?b=2&utm_x=1&a=1", strip, "https://example.com/s?b=2&a=1"},
		{"ignore query", "https://example.com/s?q=1", Options{IgnoreQuery: true}, "https://example.com/s"},
		{"keeps fragment", "https://mail.google.com/mail/u/0/#inbox", Options{}, "https://mail.google.com/mail/u/0#inbox"},
		{"ignore fragment", "https://example.com/a#top", Options{IgnoreFragment: true}, "https://example.com/a"},
		{"drops empty query marker", "https://example.com/a?", Options{}, "https://example.com/a"},
		{"keeps port", "http://LOCALHOST:8080/x/", Options{}, "http://localhost:8080/x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Canonicalize(tt.in, tt.opts); got != tt.want {
				t.Fatalf("Canonicalize(%q) = %q; want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseFailsOpen(t *testing.T) {
	inputs := []string{
		"not a url",
		"about:blank",
		"mailto:someone@example.com",
		"http://[::1",
		"",
		"/relative/path",
	}
	for _, in := range inputs {
		got := Parse(in, Options{StripTracking: true})
		if !got.Literal {
			t.Fatalf("Parse(%q).Literal = false; want true", in)
		}
		if got.Value != in {
			t.Fatalf("Parse(%q).Value = %q; want input unchanged", in, got.Value)
		}
	}
}

func TestCanonicalizeIdempotent(t *testing.T) {
	opts := Options{StripTracking: true}
	inputs := []string{
		"https://Example.com/a/b/?utm_campaign=z&x=1#frag",
		"https://example.com//",
		"https://example.com/a//",
		"https://example.com/a%20b/?q=%2F",
		"http://Host:81",
		"garbage ::",
		"chrome://settings/",
	}
	for _, in := range inputs {
		once := Canonicalize(in, opts)
		twice := Canonicalize(once, opts)
		if once != twice {
			t.Fatalf("Canonicalize not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestTrackingValuesDoNotAffectCanonicalForm(t *testing.T) {
	opts := Options{StripTracking: true}
	a := Canonicalize("https://example.com/item?id=4&utm_source=newsletter&fbclid=abc", opts)
	b := Canonicalize("https://example.com/item?id=4&utm_source=twitter&fbclid=zzz", opts)
	if a != b {
		t.Fatalf("canonical forms differ: %q vs %q", a, b)
	}
}

func TestHostname(t *testing.T) {
	if got, want := Hostname("https://Docs.Example.com:8443/x"), "docs.example.com"; got != want {
		t.Fatalf("Hostname() = %q; want %q", got, want)
	}
	if got := Hostname("about:blank"); got != "" {
		t.Fatalf("Hostname(about:blank) = %q; want empty", got)
	}
}
