package http2

import (
	"bufio"
	"bytes"
	"testing"
)

const testStr = "make fasthttp great again"

func TestFrameDataRoundTrip(t *testing.T) {
	frh := AcquireFrameHeader()
	defer ReleaseFrameHeader(frh)

	frh.SetStream(1)
	data := AcquireFrame(FrameData).(*Data)
	data.SetEndStream(true)
	data.SetData([]byte(testStr))
	frh.SetBody(data)

	var buf bytes.Buffer
	bw := bufio.NewWriter(&buf)
	if _, err := frh.WriteTo(bw); err != nil {
		t.Fatal(err)
	}
	if err := bw.Flush(); err != nil {
		t.Fatal(err)
	}

	br := bufio.NewReader(&buf)
	out, err := ReadFrameFrom(br)
	if err != nil {
		t.Fatal(err)
	}
	defer ReleaseFrameHeader(out)

	if out.Type() != FrameData {
		t.Fatalf("unexpected type: %s", out.Type())
	}
	if out.Stream() != 1 {
		t.Fatalf("unexpected stream: %d", out.Stream())
	}
	got := out.Body().(*Data)
	if string(got.Data()) != testStr {
		t.Fatalf("mismatch %q<>%q", got.Data(), testStr)
	}
	if !got.EndStream() {
		t.Fatal("expected END_STREAM flag to round-trip")
	}
}

func TestUnknownFrameTypeIsIgnored(t *testing.T) {
	var buf bytes.Buffer
	bw := bufio.NewWriter(&buf)

	frh := AcquireFrameHeader()
	frh.SetStream(0)
	frh.kind = 0x42 // never defined; RFC 7540 4.1 says ignore, not error
	frh.payload = []byte("whatever")
	frh.length = len(frh.payload)
	frh.parseHeader(frh.rawHeader[:])
	bw.Write(frh.rawHeader[:])
	bw.Write(frh.payload)
	ReleaseFrameHeader(frh)

	// a well-formed DATA frame follows; readFrom must skip the unknown
	// frame and return this one instead of erroring.
	frh2 := AcquireFrameHeader()
	frh2.SetStream(3)
	data := AcquireFrame(FrameData).(*Data)
	data.SetData([]byte("ok"))
	frh2.SetBody(data)
	if _, err := frh2.WriteTo(bw); err != nil {
		t.Fatal(err)
	}
	if err := bw.Flush(); err != nil {
		t.Fatal(err)
	}
	ReleaseFrameHeader(frh2)

	br := bufio.NewReader(&buf)
	out, err := ReadFrameFrom(br)
	if err != nil {
		t.Fatal(err)
	}
	defer ReleaseFrameHeader(out)

	if out.Type() != FrameData || out.Stream() != 3 {
		t.Fatalf("expected the trailing DATA frame, got type=%s stream=%d", out.Type(), out.Stream())
	}
}
