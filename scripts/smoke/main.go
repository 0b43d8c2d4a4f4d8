// Command smoke exercises the session lifecycle against a running server:
// login, rotation, replay rejection and logout. Exits non-zero on the first
// behavioral mismatch, so it can gate deploys.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"strings"
	"time"
)

type client struct {
	base string
	http *http.Client

	// refresh cookie captured before the last rotation, for replay checks
	stashedRefresh *http.Cookie
}

func main() {
	var (
		base     string
		email    string
		password string
		timeout  time.Duration
	)

	flag.StringVar(&base, "base", "http://localhost:8080", "API base URL")
	flag.StringVar(&email, "email", "", "Account email (created when -register is implied by a fresh address)")
	flag.StringVar(&password, "password", "Smoke123Pass", "Account password")
	flag.DurationVar(&timeout, "timeout", 5*time.Second, "HTTP client timeout")
	flag.Parse()

	if email == "" {
		email = fmt.Sprintf("smoke-%d@example.com", time.Now().Unix())
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		log.Fatalf("cookie jar: %v", err)
	}
	c := &client{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Jar: jar, Timeout: timeout},
	}

	steps := []struct {
		name string
		run  func() error
	}{
		{"register", func() error { return c.register(email, password) }},
		{"me", c.me},
		{"refresh", func() error { return c.refresh(http.StatusOK) }},
		{"replay rejected", c.replayOriginal},
		{"logout", c.logout},
		{"me after logout", c.meRejected},
	}

	for _, step := range steps {
		if err := step.run(); err != nil {
			fmt.Printf("[FAIL] %s: %v\n", step.name, err)
			os.Exit(1)
		}
		fmt.Printf("[OK] %s\n", step.name)
	}
	fmt.Println("session lifecycle healthy")
}

func (c *client) register(email, password string) error {
	status, _, err := c.post("/api/v1/register", map[string]string{
		"email":    email,
		"password": password,
		"name":     "Smoke Test",
	}, "")
	if err != nil {
		return err
	}
	if status != http.StatusCreated {
		return fmt.Errorf("expected 201, got %d", status)
	}
	return nil
}

func (c *client) me() error {
	status, _, err := c.get("/api/v1/me")
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("expected 200, got %d", status)
	}
	return nil
}

func (c *client) meRejected() error {
	status, _, err := c.get("/api/v1/me")
	if err != nil {
		return err
	}
	if status != http.StatusUnauthorized {
		return fmt.Errorf("expected 401 after logout, got %d", status)
	}
	return nil
}

// refresh rotates the session; before doing so it stashes the current refresh
// cookie so replayOriginal can present it again later.
func (c *client) refresh(want int) error {
	c.stashRefreshCookie()
	csrf, err := c.csrfToken()
	if err != nil {
		return err
	}
	status, _, err := c.post("/api/v1/refresh", nil, csrf)
	if err != nil {
		return err
	}
	if status != want {
		return fmt.Errorf("expected %d, got %d", want, status)
	}
	return nil
}

func (c *client) stashRefreshCookie() {
	u, _ := url.Parse(c.base)
	for _, cookie := range c.http.Jar.Cookies(u) {
		if cookie.Name == "refresh_token_cookie" {
			c.stashedRefresh = cookie
		}
	}
}

func (c *client) replayOriginal() error {
	if c.stashedRefresh == nil {
		return fmt.Errorf("no refresh cookie captured before rotation")
	}
	u, _ := url.Parse(c.base)
	c.http.Jar.SetCookies(u, []*http.Cookie{c.stashedRefresh})

	csrf, err := c.csrfToken()
	if err != nil {
		return err
	}
	status, body, err := c.post("/api/v1/refresh", nil, csrf)
	if err != nil {
		return err
	}
	if status != http.StatusUnauthorized {
		return fmt.Errorf("expected 401 for replayed token, got %d (%s)", status, body)
	}
	return nil
}

func (c *client) logout() error {
	csrf, err := c.csrfToken()
	if err != nil {
		return err
	}
	status, _, err := c.post("/api/v1/logout", nil, csrf)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("expected 200, got %d", status)
	}
	return nil
}

func (c *client) csrfToken() (string, error) {
	status, body, err := c.get("/api/v1/csrf-token")
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("csrf-token returned %d", status)
	}
	var envelope struct {
		Data struct {
			CSRFToken string `json:"csrfToken"`
		} `json:"data"`
	}
	if err := json.Unmarshal([]byte(body), &envelope); err != nil {
		return "", fmt.Errorf("decode csrf response: %w", err)
	}
	if envelope.Data.CSRFToken == "" {
		return "", fmt.Errorf("empty csrf token")
	}
	return envelope.Data.CSRFToken, nil
}

func (c *client) get(path string) (int, string, error) {
	resp, err := c.http.Get(c.base + path)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()
	return readBody(resp)
}

func (c *client) post(path string, payload interface{}, csrf string) (int, string, error) {
	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			return 0, "", err
		}
	}
	req, err := http.NewRequest(http.MethodPost, c.base+path, &body)
	if err != nil {
		return 0, "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if csrf != "" {
		req.Header.Set("X-CSRF-Token", csrf)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()
	return readBody(resp)
}

func readBody(resp *http.Response) (int, string, error) {
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return resp.StatusCode, "", err
	}
	return resp.StatusCode, buf.String(), nil
}
