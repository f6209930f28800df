package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/mudra/internal/coach"
	"github.com/ayusman/mudra/internal/compare"
	lm "github.com/ayusman/mudra/internal/landmark"
	"github.com/ayusman/mudra/internal/landmark/landmarktest"
	"github.com/ayusman/mudra/internal/store"
	"github.com/ayusman/mudra/internal/timeline"
	"github.com/ayusman/mudra/internal/timeline/timelinetest"
)

func newTestServer(t *testing.T) (*httptest.Server, *store.Store) {
	t.Helper()
	st := newTestStore(t)
	srv := New(Config{Store: st, Coach: coach.New(coach.Config{})})
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return ts, st
}

func dialPractice(t *testing.T, ts *httptest.Server, header http.Header) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/practice?user=u1"
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		t.Fatalf("Dial() error = %v (status %d)", err, status)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func exchange(t *testing.T, conn *websocket.Conn, msg clientMessage) serverMessage {
	t.Helper()
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var reply serverMessage
	if err := conn.ReadJSON(&reply); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	return reply
}

func frame(t float64, hand, pose lm.Set) clientMessage {
	msg := clientMessage{Type: msgFrame, T: t, Pose: pose}
	if hand != nil {
		msg.Hands = []lm.Set{hand}
	}
	return msg
}

func TestAPI_SignWorkflow(t *testing.T) {
	ts, _ := newTestServer(t)
	client := ts.Client()

	var body bytes.Buffer
	tl := timelinetest.Hold("thanks", 15, 10, landmarktest.ThumbsUp(), nil)
	if err := timeline.Encode(&body, tl); err != nil {
		t.Fatal(err)
	}

	// 1. Upload a sign
	req, _ := http.NewRequest(http.MethodPut, ts.URL+"/api/signs/Thanks", &body)
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("PUT /api/signs/Thanks error = %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("PUT status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}
	resp.Body.Close()

	// 2. List signs
	resp, _ = client.Get(ts.URL + "/api/signs")
	var listed struct {
		Signs []store.Sign `json:"signs"`
	}
	json.NewDecoder(resp.Body).Decode(&listed)
	resp.Body.Close()
	if len(listed.Signs) != 2 || listed.Signs[0].Name != "hello" || listed.Signs[1].Name != "thanks" {
		t.Fatalf("signs = %+v", listed.Signs)
	}

	// 3. Delete it
	req, _ = http.NewRequest(http.MethodDelete, ts.URL+"/api/signs/thanks", nil)
	resp, _ = client.Do(req)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("DELETE status = %d, want %d", resp.StatusCode, http.StatusNoContent)
	}
	resp.Body.Close()

	// 4. Verify deleted
	resp, _ = client.Get(ts.URL + "/api/signs/thanks")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("GET after delete status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
	resp.Body.Close()
}

func TestPractice_Session(t *testing.T) {
	ts, st := newTestServer(t)
	conn := dialPractice(t, ts, nil)

	reply := exchange(t, conn, clientMessage{Type: msgFrame, T: 0})
	if reply.Type != msgError || !strings.Contains(reply.Error, "not running") {
		t.Errorf("frame before start = %+v", reply)
	}

	reply = exchange(t, conn, clientMessage{Type: msgStart, Sign: "Hello"})
	if reply.Type != msgStarted || reply.Sign != "hello" {
		t.Fatalf("start reply = %+v", reply)
	}

	reply = exchange(t, conn, frame(0.1, landmarktest.OpenPalm(), landmarktest.ArmsDown()))
	if reply.Type != msgUpdate || reply.Update == nil {
		t.Fatalf("frame reply = %+v", reply)
	}
	u := reply.Update
	if u.Result.Score != 100 || u.Result.ErrorCode != compare.CodeNone || u.Frame != 3 {
		t.Errorf("update = score %d code %s frame %d", u.Result.Score, u.Result.ErrorCode, u.Frame)
	}

	// Scaled and shifted landmarks score the same.
	moved := landmarktest.Transform(landmarktest.OpenPalm(), 1.7, 0.1, -0.05, 0)
	reply = exchange(t, conn, frame(0.2, moved, landmarktest.ArmsDown()))
	if reply.Update.Result.Score != 100 {
		t.Errorf("transformed hand score = %d, want 100", reply.Update.Result.Score)
	}

	reply = exchange(t, conn, frame(0.3, nil, nil))
	if reply.Update.Result.ErrorCode != compare.CodeNoData || reply.Update.Result.Score != 0 {
		t.Errorf("empty frame = %+v", reply.Update.Result)
	}
	if reply.Update.Stats.Frames != 3 || reply.Update.Stats.Best != 100 {
		t.Errorf("stats = %+v", reply.Update.Stats)
	}

	reply = exchange(t, conn, frame(-1, nil, nil))
	if reply.Type != msgError {
		t.Errorf("negative time reply = %+v", reply)
	}

	reply = exchange(t, conn, clientMessage{Type: msgStop})
	if reply.Type != msgStopped || reply.Summary == nil {
		t.Fatalf("stop reply = %+v", reply)
	}
	if reply.Summary.Stats.Frames != 3 || reply.Summary.Sign != "hello" {
		t.Errorf("summary = %+v", reply.Summary)
	}

	reply = exchange(t, conn, clientMessage{Type: msgStop})
	if reply.Type != msgError {
		t.Errorf("second stop reply = %+v", reply)
	}

	runs, err := st.Runs().List("hello", 0)
	if err != nil {
		t.Fatalf("Runs().List() error = %v", err)
	}
	if len(runs) != 1 || runs[0].Frames != 3 || runs[0].Best != 100 {
		t.Errorf("runs = %+v", runs)
	}
}

func TestPractice_SwitchAndErrors(t *testing.T) {
	ts, st := newTestServer(t)
	tl := timelinetest.Hold("thanks", 15, 10, landmarktest.ThumbsUp(), nil)
	if _, err := st.Signs().Put(tl); err != nil {
		t.Fatal(err)
	}
	conn := dialPractice(t, ts, nil)

	reply := exchange(t, conn, clientMessage{Type: msgStart, Sign: "nope"})
	if reply.Type != msgError || !strings.Contains(reply.Error, "not found") {
		t.Errorf("unknown sign reply = %+v", reply)
	}

	exchange(t, conn, clientMessage{Type: msgStart, Sign: "hello"})
	reply = exchange(t, conn, clientMessage{Type: msgStart, Sign: "thanks"})
	if reply.Type != msgError || !strings.Contains(reply.Error, "switch") {
		t.Errorf("start while running = %+v", reply)
	}

	exchange(t, conn, frame(0, landmarktest.OpenPalm(), nil))

	// Switch reports the finished run, then the new start.
	reply = exchange(t, conn, clientMessage{Type: msgSwitch, Sign: "thanks"})
	if reply.Type != msgStopped || reply.Summary.Sign != "hello" {
		t.Fatalf("switch first reply = %+v", reply)
	}
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	if err := conn.ReadJSON(&reply); err != nil {
		t.Fatal(err)
	}
	if reply.Type != msgStarted || reply.Sign != "thanks" {
		t.Errorf("switch second reply = %+v", reply)
	}

	reply = exchange(t, conn, frame(0, landmarktest.ThumbsUp(), nil))
	if reply.Update.Sign != "thanks" || reply.Update.Result.Score != 100 {
		t.Errorf("update after switch = %+v", reply.Update)
	}

	reply = exchange(t, conn, clientMessage{Type: "dance"})
	if reply.Type != msgError || !strings.Contains(reply.Error, "dance") {
		t.Errorf("unknown type reply = %+v", reply)
	}
}

func TestPractice_Coaching(t *testing.T) {
	ts, _ := newTestServer(t)
	conn := dialPractice(t, ts, nil)
	exchange(t, conn, clientMessage{Type: msgStart, Sign: "hello"})

	// A thumbs-up against an open palm target is far outside tolerance.
	for i := 0; i < 50; i++ {
		reply := exchange(t, conn, frame(0.1, landmarktest.ThumbsUp(), landmarktest.ArmsDown()))
		if reply.Update == nil {
			t.Fatalf("reply = %+v", reply)
		}
		if fb := reply.Update.Feedback; fb != nil {
			if fb.Text == "" || fb.Source != coach.SourceFallback {
				t.Errorf("feedback = %+v", fb)
			}
			if fb.ErrorCode != string(reply.Update.Result.ErrorCode) {
				t.Errorf("feedback code %s, result code %s", fb.ErrorCode, reply.Update.Result.ErrorCode)
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("no coaching feedback delivered")
}

func TestPractice_Origin(t *testing.T) {
	ts, _ := newTestServer(t)
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/practice"

	header := http.Header{"Origin": {"http://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	if err == nil {
		t.Fatal("cross-origin dial should fail")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("response = %v, want 403", resp)
	}

	// Same origin is accepted.
	dialPractice(t, ts, http.Header{"Origin": {ts.URL}})
}
