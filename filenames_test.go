package core

import "testing"

func TestParseFileName(t *testing.T) {
	cases := []struct {
		name   string
		number uint64
		kind   FileKind
	}{
		{"100.log", 100, KindLogFile},
		{"0.log", 0, KindLogFile},
		{"0.sst", 0, KindTableFile},
		{"0.ldb", 0, KindTableFile},
		{"CURRENT", 0, KindCurrentFile},
		{"LOCK", 0, KindLockFile},
		{"MANIFEST-2", 2, KindDescriptorFile},
		{"MANIFEST-7", 7, KindDescriptorFile},
		{"LOG", 0, KindInfoLogFile},
		{"LOG.old", 0, KindInfoLogFile},
		{"18446744073709551615.log", 18446744073709551615, KindLogFile},
	}

	for _, tc := range cases {
		num, kind, ok := ParseFileName(tc.name)
		if !ok {
			t.Errorf("ParseFileName(%q) failed, want success", tc.name)
			continue
		}
		if num != tc.number || kind != tc.kind {
			t.Errorf("ParseFileName(%q) = (%d, %v), want (%d, %v)", tc.name, num, kind, tc.number, tc.kind)
		}
	}
}

func TestParseFileNameRejects(t *testing.T) {
	bad := []string{
		"",
		"foo",
		"foo-dx-100.log",
		".log",
		"manifest",
		"CURREN",
		"CURRENTX",
		"MANIFES",
		"MANIFEST",
		"MANIFEST-",
		"XMANIFEST-3",
		"MANIFEST-3x",
		"LOC",
		"LOCKx",
		"LO",
		"LOGx",
		"18446744073709551616.log",
		"184467440737095516150.log",
		"100",
		"100.",
		"100.lop",
	}

	for _, name := range bad {
		if _, _, ok := ParseFileName(name); ok {
			t.Errorf("ParseFileName(%q) succeeded, want failure", name)
		}
	}
}

func TestFileNameConstruction(t *testing.T) {
	name := CurrentFileName("foo")
	if name[:4] != "foo/" {
		t.Fatalf("CurrentFileName = %q, want prefix 'foo/'", name)
	}
	if num, kind, ok := ParseFileName(name[4:]); !ok || num != 0 || kind != KindCurrentFile {
		t.Errorf("ParseFileName(%q) = (%d, %v, %v)", name[4:], num, kind, ok)
	}

	name = LockFileName("foo")
	if num, kind, ok := ParseFileName(name[4:]); !ok || num != 0 || kind != KindLockFile {
		t.Errorf("ParseFileName(%q) = (%d, %v, %v)", name[4:], num, kind, ok)
	}

	name = LogFileName("foo", 192)
	if num, kind, ok := ParseFileName(name[4:]); !ok || num != 192 || kind != KindLogFile {
		t.Errorf("ParseFileName(%q) = (%d, %v, %v)", name[4:], num, kind, ok)
	}

	name = TableFileName("bar", 200)
	if num, kind, ok := ParseFileName(name[4:]); !ok || num != 200 || kind != KindTableFile {
		t.Errorf("ParseFileName(%q) = (%d, %v, %v)", name[4:], num, kind, ok)
	}

	name = DescriptorFileName("bar", 100)
	if num, kind, ok := ParseFileName(name[4:]); !ok || num != 100 || kind != KindDescriptorFile {
		t.Errorf("ParseFileName(%q) = (%d, %v, %v)", name[4:], num, kind, ok)
	}
}

func TestFileNameNumberMustBePositive(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("LogFileName(0) should panic")
		}
	}()
	LogFileName("db", 0)
}
