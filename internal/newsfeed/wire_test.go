package newsfeed

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func rssServer(t *testing.T, entries ...string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>feed</title>`)
		for _, e := range entries {
			fmt.Fprint(w, e)
		}
		fmt.Fprint(w, `</channel></rss>`)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func rssEntry(title, link, pubDate, desc string) string {
	return fmt.Sprintf(`<item><title>%s</title><link>%s</link><pubDate>%s</pubDate><description>%s</description></item>`,
		title, link, pubDate, desc)
}

func TestWireHeadlinesMergeAndSort(t *testing.T) {
	older := rssServer(t,
		rssEntry("older story", "https://example.com/1", "Mon, 09 Mar 2026 08:00:00 GMT", "first"),
	)
	newer := rssServer(t,
		rssEntry("newer story", "https://example.com/2", "Tue, 10 Mar 2026 08:00:00 GMT", "<p>second</p>"),
	)

	wire := NewWireWithSources([]WireSource{
		{Name: "Older Feed", RSSURL: older.URL},
		{Name: "Newer Feed", RSSURL: newer.URL},
	})

	items, err := wire.Headlines(context.Background(), 0)
	if err != nil {
		t.Fatalf("Headlines: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].Title != "newer story" || items[1].Title != "older story" {
		t.Fatalf("not sorted newest first: %q, %q", items[0].Title, items[1].Title)
	}
	if items[0].Summary != "second" {
		t.Fatalf("HTML not stripped from description: %q", items[0].Summary)
	}
	if items[0].Source != "Newer Feed" {
		t.Fatalf("source label: got %q", items[0].Source)
	}
	// IDs are reassigned after the merge.
	if items[0].ID != 1 || items[1].ID != 2 {
		t.Fatalf("IDs not sequential: %d, %d", items[0].ID, items[1].ID)
	}
}

func TestWireHeadlinesLimit(t *testing.T) {
	srv := rssServer(t,
		rssEntry("one", "https://example.com/1", "Tue, 10 Mar 2026 10:00:00 GMT", ""),
		rssEntry("two", "https://example.com/2", "Tue, 10 Mar 2026 09:00:00 GMT", ""),
		rssEntry("three", "https://example.com/3", "Tue, 10 Mar 2026 08:00:00 GMT", ""),
	)

	wire := NewWireWithSources([]WireSource{{Name: "Feed", RSSURL: srv.URL}})
	items, err := wire.Headlines(context.Background(), 2)
	if err != nil {
		t.Fatalf("Headlines: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("limit not applied: got %d items", len(items))
	}
	if items[0].Title != "one" {
		t.Fatalf("cap must keep the newest items, got %q first", items[0].Title)
	}
}

func TestWireSkipsFailedSources(t *testing.T) {
	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer dead.Close()

	alive := rssServer(t,
		rssEntry("survivor", "https://example.com/1", "Tue, 10 Mar 2026 08:00:00 GMT", ""),
	)

	wire := NewWireWithSources([]WireSource{
		{Name: "Dead Feed", RSSURL: dead.URL},
		{Name: "Live Feed", RSSURL: alive.URL},
	})

	items, err := wire.Headlines(context.Background(), 0)
	if err != nil {
		t.Fatalf("Headlines: %v", err)
	}
	if len(items) != 1 || items[0].Title != "survivor" {
		t.Fatalf("expected only the live feed's item, got %+v", items)
	}
}

func TestWireCachesResults(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, `<?xml version="1.0"?><rss version="2.0"><channel><title>f</title>`+
			rssEntry("cached", "https://example.com/1", "Tue, 10 Mar 2026 08:00:00 GMT", "")+
			`</channel></rss>`)
	}))
	defer srv.Close()

	wire := NewWireWithSources([]WireSource{{Name: "Feed", RSSURL: srv.URL}})
	if _, err := wire.Headlines(context.Background(), 0); err != nil {
		t.Fatalf("first call: %v", err)
	}
	if _, err := wire.Headlines(context.Background(), 0); err != nil {
		t.Fatalf("second call: %v", err)
	}
	if hits != 1 {
		t.Fatalf("expected a single upstream hit, got %d", hits)
	}
}

func TestSortItemsByDate(t *testing.T) {
	items := itemsNamed("a", "b", "c")
	items[1].PublishedAt = items[1].PublishedAt.Add(2 * 3600e9)
	items[2].PublishedAt = items[2].PublishedAt.Add(3600e9)

	sortItemsByDate(items)
	if items[0].Title != "b" || items[1].Title != "c" || items[2].Title != "a" {
		t.Fatalf("order: %q %q %q", items[0].Title, items[1].Title, items[2].Title)
	}
}
