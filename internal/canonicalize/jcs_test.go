package canonicalize

import "testing"

func TestJCS_Sorting(t *testing.T) {
	input := map[string]interface{}{
		"c": 3,
		"a": 1,
		"b": 2,
	}
	expected := `{"a":1,"b":2,"c":3}`

	b, err := JCS(input)
	if err != nil {
		t.Fatalf("JCS failed: %v", err)
	}
	if string(b) != expected {
		t.Errorf("expected %s, got %s", expected, string(b))
	}
}

func TestJCS_RecursiveSorting(t *testing.T) {
	input := map[string]interface{}{
		"z": map[string]interface{}{
			"y": "foo",
			"x": "bar",
		},
		"a": 1,
	}
	expected := `{"a":1,"z":{"x":"bar","y":"foo"}}`

	b, err := JCS(input)
	if err != nil {
		t.Fatalf("JCS failed: %v", err)
	}
	if string(b) != expected {
		t.Errorf("expected %s, got %s", expected, string(b))
	}
}

func TestJCS_NoHTMLEscaping(t *testing.T) {
	input := map[string]string{
		"html": "<script>alert('xss')</script> &",
	}
	expected := `{"html":"<script>alert('xss')</script> &"}`

	b, err := JCS(input)
	if err != nil {
		t.Fatalf("JCS failed: %v", err)
	}
	if string(b) != expected {
		t.Errorf("expected %s, got %s", expected, string(b))
	}
}

func TestJCS_ArrayOrderPreserved(t *testing.T) {
	input := map[string]interface{}{
		"items": []interface{}{3, 1, 2},
	}
	expected := `{"items":[3,1,2]}`

	b, err := JCS(input)
	if err != nil {
		t.Fatalf("JCS failed: %v", err)
	}
	if string(b) != expected {
		t.Errorf("expected %s, got %s", expected, string(b))
	}
}

func TestCanonicalHash_Stability(t *testing.T) {
	v1 := map[string]interface{}{"a": 1, "b": 2}
	type s struct {
		B int `json:"b"`
		A int `json:"a"`
	}
	v2 := s{B: 2, A: 1}

	h1, err := CanonicalHash(v1)
	if err != nil {
		t.Fatalf("CanonicalHash(v1): %v", err)
	}
	h2, err := CanonicalHash(v2)
	if err != nil {
		t.Fatalf("CanonicalHash(v2): %v", err)
	}
	if h1 != h2 {
		t.Errorf("expected equal hashes for semantically identical values, got %s != %s", h1, h2)
	}
}

func TestCanonicalHash_DiffersOnContent(t *testing.T) {
	h1, _ := CanonicalHash(map[string]int{"a": 1})
	h2, _ := CanonicalHash(map[string]int{"a": 2})
	if h1 == h2 {
		t.Errorf("expected different hashes for different content")
	}
}

func TestHashBytes_IsHex64(t *testing.T) {
	h := HashBytes([]byte("hello"))
	if len(h) != 64 {
		t.Fatalf("expected 64 hex chars, got %d: %s", len(h), h)
	}
}
