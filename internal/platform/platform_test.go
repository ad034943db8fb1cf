package platform_test

import (
	"testing"

	"fetchd/internal/platform"
)

func TestDetect(t *testing.T) {
	cases := []struct {
		url      string
		expected platform.Platform
		ok       bool
	}{
		{"https://twitter.com/user/status/123", platform.Twitter, true},
		{"https://x.com/user/status/123", platform.Twitter, true},
		{"https://mobile.twitter.com/user/status/123", platform.Twitter, true},
		{"https://www.reddit.com/r/videos/comments/abc/", platform.Reddit, true},
		{"https://redd.it/abc", platform.Reddit, true},
		{"https://www.instagram.com/p/xyz/", platform.Instagram, true},
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", platform.YouTube, true},
		{"https://youtu.be/dQw4w9WgXcQ", platform.YouTube, true},
		{"https://example.com/video.mp4", "", false},
		{"https://notyoutube.com/watch", "", false},
		{"not a url", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, ok := platform.Detect(tc.url)
		if ok != tc.ok || got != tc.expected {
			t.Errorf("Detect(%q) = (%q, %v), want (%q, %v)", tc.url, got, ok, tc.expected, tc.ok)
		}
	}
}

func TestParse(t *testing.T) {
	if p, ok := platform.Parse(" YouTube "); !ok || p != platform.YouTube {
		t.Fatalf("Parse normalized: got (%q, %v)", p, ok)
	}
	if _, ok := platform.Parse("vimeo"); ok {
		t.Fatal("expected unknown platform to fail")
	}
	if _, ok := platform.Parse(""); ok {
		t.Fatal("expected empty platform to fail")
	}
}

func TestEnvKey(t *testing.T) {
	if key := platform.Twitter.EnvKey(); key != "TWITTER_USE_LIBRARY" {
		t.Fatalf("unexpected env key %q", key)
	}
}
