package detector

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"visors/processing/frame"
)

type fakeServer struct {
	srv         *httptest.Server
	connections atomic.Int32
	models      chan string
}

// newFakeServer answers every binary frame with reply. When oneShot is set the
// connection is closed after the first answer.
func newFakeServer(t *testing.T, reply []wireDetection, oneShot bool) *fakeServer {
	t.Helper()

	fs := &fakeServer{models: make(chan string, 10)}
	upgrader := websocket.Upgrader{}

	fs.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ws" {
			http.NotFound(w, r)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		fs.connections.Add(1)
		fs.models <- r.URL.Query().Get("model")

		for {
			mt, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if mt != websocket.BinaryMessage {
				return
			}
			if _, err := jpeg.Decode(bytes.NewReader(msg)); err != nil {
				return
			}

			data, _ := json.Marshal(reply)
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
			if oneShot {
				return
			}
		}
	}))
	t.Cleanup(fs.srv.Close)
	return fs
}

func (fs *fakeServer) host() string {
	return strings.TrimPrefix(fs.srv.URL, "http://")
}

func testFrame(w, h int) *frame.Frame {
	return frame.FromImage(image.NewRGBA(image.Rect(0, 0, w, h)))
}

func TestRemoteDetector_Detect(t *testing.T) {
	fs := newFakeServer(t, []wireDetection{
		{Label: "person", ClassID: 0, Confidence: 0.9, Box: []float32{0.1, 0.2, 0.5, 0.6}},
		{Label: "broken", Box: []float32{0.1}},
	}, false)

	d := NewRemoteDetector(fs.host(), "yolo11s-seg", RemoteConfig{Timeout: time.Second})
	defer d.Close()

	res, err := d.Detect(context.Background(), testFrame(100, 50))
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}

	if len(res.Detections) != 1 {
		t.Fatalf("got %d detections, want 1 (malformed box skipped)", len(res.Detections))
	}
	det := res.Detections[0]
	if det.Label != "person" || det.Confidence != 0.9 {
		t.Errorf("detection = %+v", det)
	}
	if want := image.Rect(20, 5, 60, 25); det.Box != want {
		t.Errorf("box = %v, want %v", det.Box, want)
	}
	if res.HasMasks() {
		t.Error("result without mask field reported masks")
	}
	if res.FrameSize != image.Pt(100, 50) {
		t.Errorf("frame size = %v", res.FrameSize)
	}

	if got := <-fs.models; got != "yolo11s-seg" {
		t.Errorf("server saw model %q, want yolo11s-seg", got)
	}

	if _, err := d.Detect(context.Background(), testFrame(100, 50)); err != nil {
		t.Fatalf("second Detect() error = %v", err)
	}
	if n := fs.connections.Load(); n != 1 {
		t.Errorf("connections = %d, want 1 (connection reused)", n)
	}
}

func TestRemoteDetector_Mask(t *testing.T) {
	maskImg := image.NewGray(image.Rect(0, 0, 10, 5))
	for x := 0; x < 5; x++ {
		for y := 0; y < 5; y++ {
			maskImg.SetGray(x, y, color.Gray{Y: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, maskImg); err != nil {
		t.Fatal(err)
	}

	fs := newFakeServer(t, []wireDetection{
		{Label: "dog", ClassID: 16, Confidence: 0.7, Box: []float32{0, 0, 1, 0.5}, Mask: buf.Bytes()},
	}, false)

	d := NewRemoteDetector(fs.host(), "", RemoteConfig{})
	defer d.Close()

	res, err := d.Detect(context.Background(), testFrame(20, 10))
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if !res.HasMasks() {
		t.Fatal("expected a mask")
	}

	mask := res.Detections[0].Mask
	if mask.Bounds() != image.Rect(0, 0, 20, 10) {
		t.Errorf("mask bounds = %v, want frame size", mask.Bounds())
	}
	if mask.AlphaAt(2, 2).A == 0 {
		t.Error("left half of the mask should be set")
	}
	if mask.AlphaAt(17, 2).A != 0 {
		t.Error("right half of the mask should be clear")
	}
}

func TestRemoteDetector_Reconnects(t *testing.T) {
	fs := newFakeServer(t, []wireDetection{}, true)

	d := NewRemoteDetector(fs.host(), "yolo11n-seg", RemoteConfig{Timeout: time.Second})
	defer d.Close()

	ctx := context.Background()
	if _, err := d.Detect(ctx, testFrame(8, 8)); err != nil {
		t.Fatalf("first Detect() error = %v", err)
	}
	if _, err := d.Detect(ctx, testFrame(8, 8)); err == nil {
		t.Fatal("second Detect() on a closed connection should fail")
	}
	if _, err := d.Detect(ctx, testFrame(8, 8)); err != nil {
		t.Fatalf("third Detect() should redial, got %v", err)
	}
	if n := fs.connections.Load(); n != 2 {
		t.Errorf("connections = %d, want 2", n)
	}
}

func TestRemoteDetector_Unreachable(t *testing.T) {
	d := NewRemoteDetector("127.0.0.1:1", "", RemoteConfig{Timeout: 200 * time.Millisecond})
	defer d.Close()

	if _, err := d.Detect(context.Background(), testFrame(8, 8)); err == nil {
		t.Fatal("expected a connection error")
	}
}

func TestRemoteDetector_EmptyFrame(t *testing.T) {
	d := NewRemoteDetector("127.0.0.1:1", "", RemoteConfig{})
	if _, err := d.Detect(context.Background(), &frame.Frame{}); err == nil {
		t.Fatal("expected an error for an empty frame")
	}
}

func TestNewRemoteDetector_URL(t *testing.T) {
	d := NewRemoteDetector("example.com:8080", "yolo11x-seg", RemoteConfig{})
	if got, want := d.URL(), "ws://example.com:8080/ws?model=yolo11x-seg"; got != want {
		t.Errorf("URL() = %q, want %q", got, want)
	}
}
