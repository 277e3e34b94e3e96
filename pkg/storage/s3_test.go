package storage

import "testing"

func TestValidateArtifactFileType(t *testing.T) {
	cases := []struct {
		contentType string
		filename    string
		want        bool
	}{
		{"application/zip", "logs.zip", true},
		{"", "diag.json", true},
		{"", "system.log", true},
		{"text/plain", "notes", true},
		{"", "screenshot.PNG", true},
		{"video/mp4", "capture.mp4", false},
		{"", "tool.exe", false},
		{"application/x-msdownload", "setup.bin", false},
	}
	for _, tc := range cases {
		if got := ValidateArtifactFileType(tc.contentType, tc.filename); got != tc.want {
			t.Fatalf("ValidateArtifactFileType(%q, %q) = %v, want %v", tc.contentType, tc.filename, got, tc.want)
		}
	}
}

func TestContentTypeForFilename(t *testing.T) {
	if got := ContentTypeForFilename("dump.LOG"); got != "text/plain" {
		t.Fatalf("expected text/plain for .log, got %q", got)
	}
	if got := ContentTypeForFilename("blob.bin"); got != "application/octet-stream" {
		t.Fatalf("expected fallback content type, got %q", got)
	}
}

func TestObjectKeys(t *testing.T) {
	if got := ArtifactKey("123456789", "abc", "../../etc/passwd"); got != "artifacts/123456789/abc/passwd" {
		t.Fatalf("expected path traversal stripped, got %q", got)
	}
	if got := TranscriptKey("123456789", "abc"); got != "transcripts/123456789/abc.json" {
		t.Fatalf("unexpected transcript key %q", got)
	}
}
