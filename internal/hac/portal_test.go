package hac

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/yunusemregul/hacmanager/internal/config"
)

// fakePortal emulates the HAC endpoints a client talks to: CSRF documents,
// form login, file listing, zip build and archive download.
type fakePortal struct {
	mu sync.Mutex

	username  string
	password  string
	preToken  string
	postToken string

	files   []FileEntry
	zipBody []byte
	zipSize int64 // KB, as the portal reports it

	// request log
	zipRequests      []string
	dataRequests     int
	downloadRequests int

	failData     bool
	failZip      bool
	failDownload bool
	omitCSRF     bool
	failPostCSRF bool
}

func newFakePortal() *fakePortal {
	return &fakePortal{
		username:  "admin",
		password:  "nimda",
		preToken:  "pre-token-111",
		postToken: "post-token-222",
		zipSize:   1,
	}
}

func csrfPage(token string) string {
	return fmt.Sprintf(`<html><head><meta name="_csrf" content="%s"/></head><body></body></html>`, token)
}

func (p *fakePortal) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		if p.omitCSRF {
			fmt.Fprint(w, "<html><body>no token here</body></html>")
			return
		}
		fmt.Fprint(w, csrfPage(p.preToken))
	})

	mux.HandleFunc("/j_spring_security_check", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" {
			t.Errorf("login: expected POST, got %s", r.Method)
		}
		if got := r.Header.Get("X-CSRF-TOKEN"); got != p.preToken {
			t.Errorf("login: expected csrf header %q, got %q", p.preToken, got)
		}
		r.ParseForm()
		if got := r.PostFormValue("_csrf"); got != p.preToken {
			t.Errorf("login: expected _csrf field %q, got %q", p.preToken, got)
		}
		if r.PostFormValue("j_username") != p.username || r.PostFormValue("j_password") != p.password {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "JSESSIONID", Value: "session-abc"})
	})

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		if p.failPostCSRF {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		p.requireSession(t, r)
		fmt.Fprint(w, csrfPage(p.postToken))
	})

	mux.HandleFunc("/monitoring/logs/data", func(w http.ResponseWriter, r *http.Request) {
		p.mu.Lock()
		p.dataRequests++
		fail := p.failData
		files := p.files
		p.mu.Unlock()

		p.requireSession(t, r)
		if got := r.Header.Get("X-CSRF-TOKEN"); got != p.postToken {
			t.Errorf("data: expected csrf header %q, got %q", p.postToken, got)
		}
		if fail {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(files)
	})

	mux.HandleFunc("/monitoring/logs/zip", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" {
			t.Errorf("zip: expected POST, got %s", r.Method)
		}
		r.ParseForm()

		p.mu.Lock()
		p.zipRequests = append(p.zipRequests, r.PostFormValue("files"))
		fail := p.failZip
		size := p.zipSize
		p.mu.Unlock()

		if fail {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprintf(w, `{"size":%d}`, size)
	})

	mux.HandleFunc("/monitoring/logs/download", func(w http.ResponseWriter, r *http.Request) {
		p.mu.Lock()
		p.downloadRequests++
		fail := p.failDownload
		body := p.zipBody
		p.mu.Unlock()

		if fail {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write(body)
	})

	return mux
}

func (p *fakePortal) requireSession(t *testing.T, r *http.Request) {
	if c, err := r.Cookie("JSESSIONID"); err != nil || c.Value != "session-abc" {
		t.Errorf("%s: expected session cookie, got %v", r.URL.Path, err)
	}
}

func (p *fakePortal) zipRequestCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.zipRequests)
}

// testClient builds a client against a fake portal, both torn down with t.
func testClient(t *testing.T, p *fakePortal, opts Options) *Client {
	t.Helper()
	ts := httptest.NewServer(p.handler(t))
	t.Cleanup(ts.Close)

	if opts.DownloadsDir == "" {
		opts.DownloadsDir = t.TempDir()
	}
	if opts.Timeout == 0 {
		opts.Timeout = 5 * time.Second
	}

	c, err := New(config.Portal{
		Name:        "test-portal",
		BaseURL:     ts.URL,
		Credentials: config.Credentials{Username: p.username, Password: p.password},
	}, config.DefaultEndpoints(), opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}
