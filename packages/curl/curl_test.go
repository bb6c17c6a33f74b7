package curl

import (
	"testing"

	"github.com/abdul-hamid-achik/hostfetch/packages/http"
)

func mustParse(t *testing.T, cmdline string) *Command {
	t.Helper()
	cmd, err := Parse(cmdline)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return cmd
}

func TestParse_SimpleGet(t *testing.T) {
	d := mustParse(t, `curl https://api.example.com/users`).Descriptor

	if d.Method != "GET" {
		t.Errorf("expected method GET, got %s", d.Method)
	}
	if d.URL != "https://api.example.com/users" {
		t.Errorf("expected URL https://api.example.com/users, got %s", d.URL)
	}
	if d.FollowsRedirects() {
		t.Errorf("expected manual redirects without -L")
	}
	if d.Body != nil {
		t.Errorf("expected no body, got %q", *d.Body)
	}
}

func TestParse_PostWithData(t *testing.T) {
	d := mustParse(t, `curl -X POST https://api.example.com/users -H 'Content-Type: application/json' -d '{"name":"John"}'`).Descriptor

	if d.Method != "POST" {
		t.Errorf("expected method POST, got %s", d.Method)
	}
	if d.Body == nil || *d.Body != `{"name":"John"}` {
		t.Errorf("unexpected body %v", d.Body)
	}
	if len(d.Headers) != 1 || d.Headers[0].Value != "application/json" {
		t.Errorf("expected only the explicit content type, got %v", d.Headers)
	}
}

func TestParse_ImplicitPostAndFormType(t *testing.T) {
	d := mustParse(t, `curl -d "name=John" --data age=3 https://api.example.com/users`).Descriptor

	if d.Method != "POST" {
		t.Errorf("expected implicit POST method, got %s", d.Method)
	}
	if *d.Body != "name=John&age=3" {
		t.Errorf("expected joined data, got %s", *d.Body)
	}
	want := http.Header{Name: "Content-Type", Value: "application/x-www-form-urlencoded"}
	if len(d.Headers) != 1 || d.Headers[0] != want {
		t.Errorf("expected form content type, got %v", d.Headers)
	}
}

func TestParse_HeadersInOrder(t *testing.T) {
	d := mustParse(t, `curl -H "Accept: text/html" -H "X-Trace: a:b" -A bot/1 -b "sid=1" https://example.com`).Descriptor

	want := []http.Header{
		{Name: "Accept", Value: "text/html"},
		{Name: "X-Trace", Value: "a:b"},
		{Name: "User-Agent", Value: "bot/1"},
		{Name: "Cookie", Value: "sid=1"},
	}
	if len(d.Headers) != len(want) {
		t.Fatalf("expected %d headers, got %v", len(want), d.Headers)
	}
	for i := range want {
		if d.Headers[i] != want[i] {
			t.Errorf("header %d: expected %v, got %v", i, want[i], d.Headers[i])
		}
	}
}

func TestParse_BasicAuth(t *testing.T) {
	d := mustParse(t, `curl -u admin:password123 https://api.example.com/admin`).Descriptor

	if len(d.Headers) != 1 || d.Headers[0].Value != "Basic YWRtaW46cGFzc3dvcmQxMjM=" {
		t.Errorf("unexpected authorization header %v", d.Headers)
	}
}

func TestParse_Switches(t *testing.T) {
	cmd := mustParse(t, `curl -sSL -k --compressed -L -e https://ref.example.com -m 2.5 https://example.com`)

	if !cmd.Insecure {
		t.Errorf("expected -k to set Insecure")
	}
	if !cmd.Descriptor.FollowsRedirects() {
		t.Errorf("expected -L to follow redirects")
	}
	if cmd.Descriptor.Referrer != "https://ref.example.com" {
		t.Errorf("unexpected referrer %q", cmd.Descriptor.Referrer)
	}
	if cmd.Descriptor.TimeoutMs != 2500 {
		t.Errorf("expected 2500ms timeout, got %d", cmd.Descriptor.TimeoutMs)
	}
}

func TestParse_Head(t *testing.T) {
	d := mustParse(t, `curl -I https://example.com`).Descriptor
	if d.Method != "HEAD" {
		t.Errorf("expected HEAD, got %s", d.Method)
	}
}

func TestParse_MultilineAndURLFlag(t *testing.T) {
	d := mustParse(t, "curl \\\n  --request PUT \\\n  --url https://example.com/items/1 \\\n  --data-raw 'x y'").Descriptor

	if d.Method != "PUT" || d.URL != "https://example.com/items/1" {
		t.Errorf("unexpected request %s %s", d.Method, d.URL)
	}
	if *d.Body != "x y" {
		t.Errorf("expected quoted body to keep its space, got %q", *d.Body)
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []string{
		``,
		`curl`,
		`curl -X`,
		`curl -H "no colon" https://example.com`,
		`curl -m soon https://example.com`,
		`curl -v -s`,
	}

	for _, input := range tests {
		if _, err := Parse(input); err == nil {
			t.Errorf("expected error for %q", input)
		}
	}
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{`a b  c`, []string{"a", "b", "c"}},
		{`'single quoted' "double quoted"`, []string{"single quoted", "double quoted"}},
		{`"it's" 'say "hi"'`, []string{"it's", `say "hi"`}},
		{`escaped\ space`, []string{"escaped space"}},
		{`-d ''`, []string{"-d", ""}},
		{`'back\slash'`, []string{`back\slash`}},
	}

	for _, tt := range tests {
		got := tokenize(tt.input)
		if len(got) != len(tt.want) {
			t.Errorf("tokenize(%q) = %q, want %q", tt.input, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("tokenize(%q)[%d] = %q, want %q", tt.input, i, got[i], tt.want[i])
			}
		}
	}
}
