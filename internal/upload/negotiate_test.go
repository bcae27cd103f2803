package upload

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/cloudpan/pan115/internal/api"
	"github.com/cloudpan/pan115/internal/config"
	"github.com/cloudpan/pan115/internal/crypto"
)

// negotiationServer scripts initupload responses and records the forms it saw.
type negotiationServer struct {
	responses []string
	forms     []url.Values
}

func (s *negotiationServer) newClient(t *testing.T) *api.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/app/uploadinfo":
			fmt.Fprint(w, `{"state":true,"user_id":555,"userkey":"UK"}`)
		case "/initupload":
			body, _ := io.ReadAll(r.Body)
			form, err := url.ParseQuery(string(body))
			if err != nil {
				t.Errorf("bad negotiation form: %v", err)
			}
			s.forms = append(s.forms, form)
			if len(s.responses) == 0 {
				t.Errorf("unscripted negotiation call")
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			fmt.Fprint(w, s.responses[0])
			s.responses = s.responses[1:]
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	t.Cleanup(srv.Close)

	c, err := api.NewClient(&config.Config{Cookie: "UID=1"}, nil,
		api.WithHTTPClient(srv.Client()),
		api.WithCipher(crypto.Plaintext{}),
		api.WithEndpoints(api.Endpoints{
			WebAPIBase:    srv.URL,
			UploadInfoURL: srv.URL + "/app/uploadinfo",
			InitURL:       srv.URL + "/initupload",
		}),
	)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestNegotiateMatched(t *testing.T) {
	srv := &negotiationServer{responses: []string{
		`{"status":2,"statuscode":0,"pickcode":"pc-match"}`,
	}}
	n := NewNegotiator(srv.newClient(t), nil)

	ticket, err := n.Negotiate(context.Background(), FromBytes("a.bin", []byte("content")), "0")
	if err != nil {
		t.Fatalf("Negotiate: %v", err)
	}
	if !ticket.Matched || ticket.PickCode != "pc-match" {
		t.Errorf("ticket = %+v", ticket)
	}
	if len(srv.forms) != 1 {
		t.Errorf("negotiation calls = %d, want 1", len(srv.forms))
	}
}

func TestNegotiateNeedsUpload(t *testing.T) {
	srv := &negotiationServer{responses: []string{
		`{"status":1,"statuscode":0,"pickcode":"pc1","bucket":"bkt","object":"obj",` +
			`"callback":{"callback":"cb","callback_var":"cv"}}`,
	}}
	n := NewNegotiator(srv.newClient(t), nil)

	ticket, err := n.Negotiate(context.Background(), FromBytes("a.bin", []byte("content")), "42")
	if err != nil {
		t.Fatalf("Negotiate: %v", err)
	}
	if ticket.Matched || ticket.Bucket != "bkt" || ticket.Object != "obj" {
		t.Errorf("ticket = %+v", ticket)
	}
	if ticket.Callback.Callback != "cb" {
		t.Errorf("callback = %+v", ticket.Callback)
	}
	if got := srv.forms[0].Get("target"); got != "U_1_42" {
		t.Errorf("target = %q", got)
	}
}

func TestNegotiateAnswersRangeProofOnce(t *testing.T) {
	content := bytes.Repeat([]byte("abcdefgh"), 512)
	srv := &negotiationServer{responses: []string{
		`{"status":7,"statuscode":701,"sign_key":"sk9","sign_check":"100-299"}`,
		`{"status":2,"statuscode":0,"pickcode":"pc2"}`,
	}}
	n := NewNegotiator(srv.newClient(t), nil)
	src := FromBytes("b.bin", content)

	ticket, err := n.Negotiate(context.Background(), src, "0")
	if err != nil {
		t.Fatalf("Negotiate: %v", err)
	}
	if !ticket.Matched {
		t.Errorf("ticket = %+v", ticket)
	}
	if len(srv.forms) != 2 {
		t.Fatalf("negotiation calls = %d, want 2", len(srv.forms))
	}

	first, second := srv.forms[0], srv.forms[1]
	if first.Has("sign_key") {
		t.Errorf("first pass carried a proof")
	}
	if second.Get("sign_key") != "sk9" {
		t.Errorf("second pass sign_key = %q", second.Get("sign_key"))
	}
	want := sha1Upper(content[100:300])
	if got := second.Get("sign_val"); got != want {
		t.Errorf("sign_val = %s, want %s", got, want)
	}
	if got := second.Get("sign_val"); got != strings.ToUpper(got) {
		t.Errorf("proof must be uppercase hex")
	}
	// The token binds the proof, so it must differ between passes.
	if first.Get("token") == second.Get("token") && first.Get("t") == second.Get("t") {
		t.Errorf("second-pass token did not change")
	}
}

func TestNegotiateRepeatedChallengeFails(t *testing.T) {
	srv := &negotiationServer{responses: []string{
		`{"status":7,"statuscode":701,"sign_key":"sk1","sign_check":"0-3"}`,
		`{"status":7,"statuscode":701,"sign_key":"sk2","sign_check":"0-3"}`,
	}}
	n := NewNegotiator(srv.newClient(t), nil)

	_, err := n.Negotiate(context.Background(), FromBytes("c.bin", []byte("contents")), "0")
	if err == nil {
		t.Fatal("expected error on repeated challenge")
	}
	if len(srv.forms) != 2 {
		t.Errorf("negotiation calls = %d, want exactly 2", len(srv.forms))
	}
}

func TestNegotiateUndefinedStatus(t *testing.T) {
	srv := &negotiationServer{responses: []string{
		`{"status":0,"statuscode":414,"statusmsg":"over quota"}`,
	}}
	n := NewNegotiator(srv.newClient(t), nil)

	_, err := n.Negotiate(context.Background(), FromBytes("d.bin", []byte("x")), "0")
	if err == nil || !strings.Contains(err.Error(), "414") {
		t.Fatalf("err = %v, want status in message", err)
	}
}
