package session

import "testing"

func TestLookupEncoding(t *testing.T) {
	for _, name := range []string{"", "utf-8", "UTF8", "cp437", "cp850", "cp866", "windows-1252", "iso-8859-1"} {
		if _, err := LookupEncoding(name); err != nil {
			t.Errorf("LookupEncoding(%q) returned error: %v", name, err)
		}
	}
	if _, err := LookupEncoding("klingon"); err == nil {
		t.Fatal("expected error for unknown encoding")
	}
}

func TestDecodeSanitizesInvalidUTF8(t *testing.T) {
	d := newTextDecoder(nil)
	got := d.decode([]byte{'a', 0xff, 'b'})
	if got != "a�b" {
		t.Fatalf("decode = %q", got)
	}
}
