package attachment

import "testing"

func TestValidateFilename(t *testing.T) {
	for _, name := range []string{
		"boarding-pass.pdf",
		"ticket.PNG",
		"receipt.jpg",
		"photo.jpeg",
		"scan.heic",
	} {
		if err := ValidateFilename(name); err != nil {
			t.Errorf("ValidateFilename(%q) = %v, want nil", name, err)
		}
	}

	for _, name := range []string{
		"",
		"   ",
		"evidence",
		"malware.exe",
		"archive.zip",
		"doc.docx",
	} {
		if err := ValidateFilename(name); err == nil {
			t.Errorf("ValidateFilename(%q) = nil, want error", name)
		}
	}
}

func TestValidateUpload(t *testing.T) {
	const maxBytes = 1 << 20

	if err := ValidateUpload("receipt.pdf", "application/pdf", 5000, maxBytes); err != nil {
		t.Errorf("valid upload: %v", err)
	}
	if err := ValidateUpload("receipt.pdf", "", 5000, maxBytes); err == nil {
		t.Error("missing content type should fail")
	}
	if err := ValidateUpload("receipt.pdf", "application/pdf", 0, maxBytes); err == nil {
		t.Error("empty file should fail")
	}
	if err := ValidateUpload("receipt.pdf", "application/pdf", maxBytes+1, maxBytes); err == nil {
		t.Error("oversized file should fail")
	}
	if err := ValidateUpload("receipt.exe", "application/pdf", 5000, maxBytes); err == nil {
		t.Error("bad extension should fail")
	}
}
