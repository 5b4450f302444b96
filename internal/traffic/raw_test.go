package traffic

import "testing"

func TestRawRequestReconstructsWireText(t *testing.T) {
	body := "hello"
	tr := &Traffic{
		Method:         "GET",
		Scheme:         "https",
		Host:           "example.test",
		Path:           "/a",
		Query:          map[string]string{"x": "1"},
		RequestHeaders: map[string]string{"host": "example.test"},
		Version:        "HTTP/1.1",
		RequestBodyString: &body,
	}

	raw := tr.RawRequest()
	want := "GET https://example.test/a?x=1 HTTP/1.1\r\nhost: example.test\r\n\r\nhello\r\n\r\n"
	if raw != want {
		t.Errorf("RawRequest() = %q, want %q", raw, want)
	}
}

func TestRawResponseReconstructsWireText(t *testing.T) {
	tr := &Traffic{
		Version:         "HTTP/1.1",
		Status:          200,
		ResponseHeaders: map[string]string{"content-type": "text/plain"},
		ResponseBody:    []byte("ok"),
	}

	raw := tr.RawResponse()
	want := "HTTP/1.1 200\r\ncontent-type: text/plain\r\n\r\nok\r\n\r\n"
	if raw != want {
		t.Errorf("RawResponse() = %q, want %q", raw, want)
	}
}
