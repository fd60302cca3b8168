package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func testClient(baseURL string) (*Client, *[]time.Duration) {
	c := NewClient(Config{
		BaseURL:     baseURL,
		APIKey:      "test-key",
		Timeout:     250 * time.Millisecond,
		MaxAttempts: 3,
		RetryDelay:  5 * time.Second,
	})
	var delays []time.Duration
	c.sleep = func(d time.Duration) { delays = append(delays, d) }
	return c, &delays
}

func chatOK(content string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": content}},
			},
		})
	}
}

func TestCompleteSuccess(t *testing.T) {
	var gotBody chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		json.NewDecoder(r.Body).Decode(&gotBody)
		chatOK("the analysis")(w, r)
	}))
	defer srv.Close()

	c, _ := testClient(srv.URL)
	text, err := c.Complete(context.Background(), "analyse this")
	if err != nil {
		t.Fatal(err)
	}
	if text != "the analysis" {
		t.Errorf("text = %q", text)
	}
	if gotBody.Temperature != 0.7 || gotBody.MaxTokens != 2000 {
		t.Errorf("sampling params = %v/%v, want 0.7/2000", gotBody.Temperature, gotBody.MaxTokens)
	}
	if len(gotBody.Messages) != 2 || gotBody.Messages[0].Role != "system" || gotBody.Messages[1].Content != "analyse this" {
		t.Errorf("unexpected messages: %+v", gotBody.Messages)
	}
}

func TestConnectionErrorRetriesThreeTimes(t *testing.T) {
	// A server that is already closed refuses every connection.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c, delays := testClient(srv.URL)
	_, err := c.Complete(context.Background(), "p")

	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Kind != KindConnection {
		t.Fatalf("err = %v, want connection error", err)
	}
	// 3 attempts means exactly 2 inter-attempt delays, each the fixed 5s.
	if len(*delays) != 2 {
		t.Fatalf("got %d retry delays, want 2", len(*delays))
	}
	for _, d := range *delays {
		if d != 5*time.Second {
			t.Errorf("retry delay = %v, want 5s", d)
		}
	}
}

func TestCanceledContextStopsRetrying(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		http.Error(w, "busy", http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c, delays := testClient(srv.URL)
	_, err := c.Complete(ctx, "p")
	if err == nil {
		t.Fatal("want an error after cancellation")
	}
	if attempts > 1 {
		t.Errorf("server saw %d attempts after cancel, want at most 1", attempts)
	}
	if len(*delays) != 0 {
		t.Errorf("slept %d times after cancel, want 0", len(*delays))
	}
}

func TestUnauthorizedFailsImmediately(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c, delays := testClient(srv.URL)
	_, err := c.Complete(context.Background(), "p")

	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Kind != KindUnauthorized {
		t.Fatalf("err = %v, want unauthorized", err)
	}
	if attempts != 1 {
		t.Errorf("server saw %d attempts, want 1", attempts)
	}
	if len(*delays) != 0 {
		t.Errorf("slept %d times, want 0", len(*delays))
	}
}

func TestTimeoutTwiceThenSuccess(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts <= 2 {
			time.Sleep(time.Second)
			return
		}
		chatOK("third time lucky")(w, r)
	}))
	defer srv.Close()

	c, delays := testClient(srv.URL)
	text, err := c.Complete(context.Background(), "p")
	if err != nil {
		t.Fatalf("err = %v, want success on third attempt", err)
	}
	if text != "third time lucky" {
		t.Errorf("text = %q; the remote text must come back verbatim", text)
	}
	if attempts != 3 {
		t.Errorf("server saw %d attempts, want 3", attempts)
	}
	if len(*delays) != 2 {
		t.Errorf("slept %d times, want 2", len(*delays))
	}
}

func TestMalformedResponseDoesNotRetry(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.Write([]byte(`{"choices": []}`))
	}))
	defer srv.Close()

	c, _ := testClient(srv.URL)
	_, err := c.Complete(context.Background(), "p")

	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Kind != KindMalformed {
		t.Fatalf("err = %v, want malformed response", err)
	}
	if attempts != 1 {
		t.Errorf("server saw %d attempts, want 1", attempts)
	}
}

func TestServerErrorRetriesThenSurfacesLastFailure(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		http.Error(w, "backend exploded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c, _ := testClient(srv.URL)
	_, err := c.Complete(context.Background(), "p")

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want APIError", err)
	}
	if apiErr.Kind != KindServerError || apiErr.Status != http.StatusInternalServerError {
		t.Errorf("got kind %q status %d", apiErr.Kind, apiErr.Status)
	}
	if attempts != 3 {
		t.Errorf("server saw %d attempts, want 3", attempts)
	}
	if !strings.Contains(apiErr.Message, "backend exploded") {
		t.Errorf("error lacks context for the caller: %v", apiErr)
	}
}

func TestRateLimitedIsRetryable(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		chatOK("after backoff")(w, r)
	}))
	defer srv.Close()

	c, _ := testClient(srv.URL)
	text, err := c.Complete(context.Background(), "p")
	if err != nil {
		t.Fatal(err)
	}
	if text != "after backoff" || attempts != 2 {
		t.Errorf("text %q after %d attempts", text, attempts)
	}
}
