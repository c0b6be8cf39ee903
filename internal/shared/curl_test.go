package shared

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestParseCurlCommand(t *testing.T) {
	tt := []struct {
		name        string
		curlCmd     string
		wantHeaders map[string]string
		wantCookie  string
		wantErr     bool
	}{
		{
			name:        "single header with single quotes",
			curlCmd:     `curl -H 'Authorization: Bearer token123' https://yomi16.nz/api/lists/songs`,
			wantHeaders: map[string]string{"authorization": "Bearer token123"},
		},
		{
			name:        "single header with double quotes",
			curlCmd:     `curl -H "Authorization: Bearer token123" https://yomi16.nz/api/lists/songs`,
			wantHeaders: map[string]string{"authorization": "Bearer token123"},
		},
		{
			name:    "long header flag",
			curlCmd: `curl --header 'Accept: application/json' --header 'Authorization: Bearer t' https://yomi16.nz`,
			wantHeaders: map[string]string{
				"accept":        "application/json",
				"authorization": "Bearer t",
			},
		},
		{
			name:        "cookie header is kept out of headers",
			curlCmd:     `curl -H 'Cookie: session=abc123' -H 'Authorization: Bearer token' https://yomi16.nz`,
			wantHeaders: map[string]string{"authorization": "Bearer token"},
			wantCookie:  "session=abc123",
		},
		{
			name:        "-b cookie takes precedence over -H cookie",
			curlCmd:     `curl -H 'Cookie: old=value' -b 'new=value' https://yomi16.nz`,
			wantHeaders: map[string]string{},
			wantCookie:  "new=value",
		},
		{
			name: "multiline curl with backslashes",
			curlCmd: `curl 'https://yomi16.nz/api/search?q=abba' \
  -H 'accept: */*' \
  -H 'authorization: Bearer eyJ.abc.def'`,
			wantHeaders: map[string]string{
				"accept":        "*/*",
				"authorization": "Bearer eyJ.abc.def",
			},
		},
		{name: "no headers or cookies", curlCmd: `curl https://yomi16.nz`, wantErr: true},
		{name: "empty command", curlCmd: "", wantErr: true},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			result, err := ParseCurlCommand(tc.curlCmd)
			if (err != nil) != tc.wantErr {
				t.Fatalf("ParseCurlCommand() error = %v, wantErr %v", err, tc.wantErr)
			}
			if tc.wantErr {
				if !errors.Is(err, ErrInvalidInput) {
					t.Errorf("expected ErrInvalidInput, got %v", err)
				}
				return
			}

			if len(result.Headers) != len(tc.wantHeaders) {
				t.Errorf("headers count = %v, want %v", len(result.Headers), len(tc.wantHeaders))
			}
			for key, want := range tc.wantHeaders {
				if got := result.Headers[key]; got != want {
					t.Errorf("header[%s] = %v, want %v", key, got, want)
				}
			}
			if result.Cookie != tc.wantCookie {
				t.Errorf("cookie = %v, want %v", result.Cookie, tc.wantCookie)
			}
		})
	}
}

func TestCurlHeaders_BearerToken(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		want    string
		wantErr bool
	}{
		{name: "bearer", headers: map[string]string{"authorization": "Bearer abc.def"}, want: "abc.def"},
		{name: "lowercase scheme", headers: map[string]string{"authorization": "bearer  xyz "}, want: "xyz"},
		{name: "missing header", headers: map[string]string{"accept": "*/*"}, wantErr: true},
		{name: "basic auth", headers: map[string]string{"authorization": "Basic dXNlcg=="}, wantErr: true},
		{name: "empty token", headers: map[string]string{"authorization": "Bearer "}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := (&CurlHeaders{Headers: tt.headers}).BearerToken()
			if (err != nil) != tt.wantErr {
				t.Fatalf("BearerToken() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("BearerToken() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseCurlFile(t *testing.T) {
	t.Run("successful file parse", func(t *testing.T) {
		curlFile := filepath.Join(t.TempDir(), "curl.sh")
		curlCmd := `curl -H 'Authorization: Bearer token123' -H 'Content-Type: application/json' https://yomi16.nz`
		if err := os.WriteFile(curlFile, []byte(curlCmd), 0644); err != nil {
			t.Fatalf("Failed to create test file: %v", err)
		}

		result, err := ParseCurlFile(curlFile)
		if err != nil {
			t.Fatalf("ParseCurlFile() error = %v", err)
		}
		token, err := result.BearerToken()
		if err != nil || token != "token123" {
			t.Errorf("BearerToken() = %q, %v", token, err)
		}
	})

	t.Run("file does not exist", func(t *testing.T) {
		if _, err := ParseCurlFile("/nonexistent/file.sh"); err == nil {
			t.Error("ParseCurlFile() expected error for nonexistent file")
		}
	})
}
