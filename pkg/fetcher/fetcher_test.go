package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// --- CheckChallenge Tests ---

func TestCheckChallenge(t *testing.T) {
	tests := []struct {
		name    string
		title   string
		html    string
		text    string
		wantErr error
	}{
		{"normal page", "Flats for sale in Noida", "<html><body>listings</body></html>", "3 BHK Flat in Sector 43", nil},
		{"cloudflare title", "Just a moment...", "", "", ErrAntiBot},
		{"cloudflare marker", "", `<div id="cf-challenge-running"></div>`, "", ErrAntiBot},
		{"recaptcha widget", "", `<div class="g-recaptcha"></div>`, "", ErrCaptchaChallenge},
		{"captcha text", "Verify", "", "Please solve the CAPTCHA to continue", ErrCaptchaChallenge},
		{"unusual traffic", "", "", "We have detected unusual traffic from your network", ErrAntiBot},
		{"access denied title", "Access Denied", "", "", ErrAntiBot},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckChallenge(tt.title, tt.html, tt.text)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("CheckChallenge() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("CheckChallenge() error = %v, want %v", err, tt.wantErr)
			}
			if !IsBlocked(err) {
				t.Errorf("IsBlocked(%v) = false", err)
			}
		})
	}
}

func TestIsTransportFailure(t *testing.T) {
	if IsTransportFailure(nil) {
		t.Error("nil is not a transport failure")
	}
	if IsTransportFailure(fmt.Errorf("wrapped: %w", context.Canceled)) {
		t.Error("cancellation is not a transport failure")
	}
	if !IsTransportFailure(fmt.Errorf("%w: 503", ErrUnexpectedStatus)) {
		t.Error("status error should be a transport failure")
	}
}

// --- StaticFetcher Tests ---

func TestStaticFetcher_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprint(w, `<html><head><title>Noida listings</title><script>var x=1;</script></head>
<body><div>3 BHK   Flat</div>
<div>₹ 1.2 Cr</div></body></html>`)
		case "/blocked":
			fmt.Fprint(w, `<html><head><title>Just a moment...</title></head><body></body></html>`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := NewStatic(StaticConfig{Timeout: 5 * time.Second})

	t.Run("success", func(t *testing.T) {
		got, err := f.Fetch(context.Background(), srv.URL+"/ok", Options{})
		if err != nil {
			t.Fatalf("Fetch() error = %v", err)
		}
		if got.StatusCode != http.StatusOK {
			t.Errorf("StatusCode = %d, want 200", got.StatusCode)
		}
		if got.Title != "Noida listings" {
			t.Errorf("Title = %q", got.Title)
		}
		if got.Text != "3 BHK Flat ₹ 1.2 Cr" {
			t.Errorf("Text = %q", got.Text)
		}
		if strings.Contains(got.Text, "var x") {
			t.Error("script content leaked into text")
		}
	})

	t.Run("not found", func(t *testing.T) {
		_, err := f.Fetch(context.Background(), srv.URL+"/missing", Options{})
		if !errors.Is(err, ErrUnexpectedStatus) {
			t.Errorf("Fetch() error = %v, want ErrUnexpectedStatus", err)
		}
	})

	t.Run("blocked", func(t *testing.T) {
		_, err := f.Fetch(context.Background(), srv.URL+"/blocked", Options{})
		if !errors.Is(err, ErrAntiBot) {
			t.Errorf("Fetch() error = %v, want ErrAntiBot", err)
		}
	})
}

func TestStaticFetcher_Headers(t *testing.T) {
	var gotUA, gotLang string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.UserAgent()
		gotLang = r.Header.Get("Accept-Language")
		fmt.Fprint(w, "<html><body>ok</body></html>")
	}))
	defer srv.Close()

	f := NewStatic(StaticConfig{})
	_, err := f.Fetch(context.Background(), srv.URL, Options{
		UserAgent: "ncrlistings-test",
		Headers:   map[string]string{"Accept-Language": "en-IN"},
	})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if gotUA != "ncrlistings-test" {
		t.Errorf("User-Agent = %q", gotUA)
	}
	if gotLang != "en-IN" {
		t.Errorf("Accept-Language = %q", gotLang)
	}
}

func TestStaticFetcher_DefaultHeaders(t *testing.T) {
	var gotReferer, gotLang string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotReferer = r.Header.Get("Referer")
		gotLang = r.Header.Get("Accept-Language")
		fmt.Fprint(w, "<html><body>ok</body></html>")
	}))
	defer srv.Close()

	if _, err := NewStatic(StaticConfig{}).Fetch(context.Background(), srv.URL+"/noida?page=2", Options{}); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if gotReferer != srv.URL+"/" {
		t.Errorf("Referer = %q, want %q", gotReferer, srv.URL+"/")
	}
	if gotLang != "en-US,en;q=0.5" {
		t.Errorf("Accept-Language = %q", gotLang)
	}
}

func TestStaticFetcher_EmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	_, err := NewStatic(StaticConfig{}).Fetch(context.Background(), srv.URL, Options{})
	if !errors.Is(err, ErrEmptyPage) {
		t.Errorf("Fetch() error = %v, want ErrEmptyPage", err)
	}
	if !IsTransportFailure(err) {
		t.Error("empty page should be a transport failure")
	}
}

// --- RetryingFetcher Tests ---

type scriptedFetcher struct {
	errs  []error
	calls int
}

func (s *scriptedFetcher) Fetch(_ context.Context, url string, _ Options) (Content, error) {
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return Content{URL: url}, s.errs[i]
	}
	return Content{URL: url, HTML: "<html></html>"}, nil
}

func (s *scriptedFetcher) Close() error { return nil }
func (s *scriptedFetcher) Type() string { return "scripted" }

func noSleep(context.Context, time.Duration) error { return nil }

func TestRetrying_RecoversFromTransientError(t *testing.T) {
	next := &scriptedFetcher{errs: []error{errors.New("connection reset"), errors.New("timeout")}}
	r := Retrying(next, RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond})
	r.sleep = noSleep

	if _, err := r.Fetch(context.Background(), "https://example.com", Options{}); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if next.calls != 3 {
		t.Errorf("calls = %d, want 3", next.calls)
	}
}

func TestRetrying_GivesUp(t *testing.T) {
	boom := errors.New("boom")
	next := &scriptedFetcher{errs: []error{boom, boom, boom, boom}}
	r := Retrying(next, RetryConfig{MaxAttempts: 2})
	r.sleep = noSleep

	_, err := r.Fetch(context.Background(), "https://example.com", Options{})
	if !errors.Is(err, boom) {
		t.Errorf("Fetch() error = %v, want wrapped boom", err)
	}
	if next.calls != 2 {
		t.Errorf("calls = %d, want 2", next.calls)
	}
}

func TestRetrying_DoesNotRetryBlockedPage(t *testing.T) {
	next := &scriptedFetcher{errs: []error{fmt.Errorf("%w: cloudflare", ErrAntiBot)}}
	r := Retrying(next, RetryConfig{MaxAttempts: 5})
	r.sleep = noSleep

	_, err := r.Fetch(context.Background(), "https://example.com", Options{})
	if !errors.Is(err, ErrAntiBot) {
		t.Errorf("Fetch() error = %v, want ErrAntiBot", err)
	}
	if next.calls != 1 {
		t.Errorf("calls = %d, want 1", next.calls)
	}
}

func TestRetrying_DelayDoubles(t *testing.T) {
	boom := errors.New("boom")
	next := &scriptedFetcher{errs: []error{boom, boom, boom}}
	r := Retrying(next, RetryConfig{MaxAttempts: 3, BaseDelay: 10 * time.Millisecond})
	var delays []time.Duration
	r.sleep = func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}

	_, _ = r.Fetch(context.Background(), "https://example.com", Options{})
	if len(delays) != 2 || delays[0] != 10*time.Millisecond || delays[1] != 20*time.Millisecond {
		t.Errorf("delays = %v, want [10ms 20ms]", delays)
	}
}

func TestSleep_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Sleep(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("Sleep() error = %v, want context.Canceled", err)
	}
}
