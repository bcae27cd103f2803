package upload

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cloudpan/pan115/internal/api"
	"github.com/cloudpan/pan115/internal/config"
	"github.com/cloudpan/pan115/internal/crypto"
)

// pipelineFixture stands up the drive API and the object store together.
type pipelineFixture struct {
	initResponse string
	ossPuts      int
	ossBody      []byte
	sampleBody   []byte
}

func (f *pipelineFixture) newUploader(t *testing.T) *Uploader {
	t.Helper()

	ossSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPut:
			f.ossPuts++
			f.ossBody, _ = io.ReadAll(r.Body)
			fmt.Fprint(w, `{"state":true,"code":0,"file_id":"f-oss","pick_code":"pc-oss","file_name":"stored.bin"}`)
		case r.Method == http.MethodPost:
			// form upload target
			if err := r.ParseMultipartForm(16 << 20); err != nil {
				t.Errorf("bad form upload: %v", err)
			}
			file, _, err := r.FormFile("file")
			if err != nil {
				t.Errorf("form file: %v", err)
				return
			}
			f.sampleBody, _ = io.ReadAll(file)
			fmt.Fprint(w, `{"state":true,"code":0,"file_id":"f-sample","pick_code":"pc-sample"}`)
		default:
			t.Errorf("unexpected store request: %s %s", r.Method, r.URL.Path)
		}
	}))
	t.Cleanup(ossSrv.Close)

	apiSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/app/uploadinfo":
			fmt.Fprint(w, `{"state":true,"user_id":555,"userkey":"UK"}`)
		case "/initupload":
			fmt.Fprint(w, f.initResponse)
		case "/getuploadinfo":
			fmt.Fprintf(w, `{"state":true,"endpoint":"%s","gettokenurl":"http://%s/gettoken"}`, ossSrv.URL, r.Host)
		case "/gettoken":
			exp := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
			fmt.Fprintf(w, `{"AccessKeyId":"id","AccessKeySecret":"sec","SecurityToken":"sts","Expiration":"%s"}`, exp)
		case "/sampleinitupload":
			fmt.Fprintf(w, `{"host":"%s","object":"sample-obj","callback":"cb","accessid":"aid","policy":"pol","signature":"sig"}`, ossSrv.URL)
		default:
			t.Errorf("unexpected api request: %s", r.URL.Path)
		}
	}))
	t.Cleanup(apiSrv.Close)

	client, err := api.NewClient(&config.Config{Cookie: "UID=1"}, nil,
		api.WithHTTPClient(apiSrv.Client()),
		api.WithCipher(crypto.Plaintext{}),
		api.WithEndpoints(api.Endpoints{
			WebAPIBase:    apiSrv.URL,
			UploadInfoURL: apiSrv.URL + "/app/uploadinfo",
			GatewayURL:    apiSrv.URL + "/getuploadinfo",
			InitURL:       apiSrv.URL + "/initupload",
			SampleInitURL: apiSrv.URL + "/sampleinitupload",
		}),
	)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return New(client, ossSrv.Client(), nil)
}

func TestUploadMatchedSkipsTransfer(t *testing.T) {
	f := &pipelineFixture{initResponse: `{"status":2,"statuscode":0,"pickcode":"pc-match"}`}
	u := f.newUploader(t)

	var sawFull bool
	result, err := u.Upload(context.Background(), FromBytes("a.bin", []byte("dup content")), Options{
		Progress: func(done, total int64) { sawFull = done == total },
	})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if !result.Matched || result.PickCode != "pc-match" {
		t.Errorf("result = %+v", result)
	}
	if f.ossPuts != 0 {
		t.Errorf("matched upload still transferred %d objects", f.ossPuts)
	}
	if !sawFull {
		t.Errorf("progress never reported completion")
	}
}

func TestUploadPrecomputedDigestSkipsHashing(t *testing.T) {
	f := &pipelineFixture{initResponse: `{"status":2,"statuscode":0,"pickcode":"pc-seeded"}`}
	u := f.newUploader(t)

	// The content is never touched: the seeded digest alone drives the
	// negotiation and the server reports a match.
	src := &Source{name: "d.bin", size: 2048, r: unreadableContent{}}
	result, err := u.Upload(context.Background(), src, Options{
		Digest: "2aae6c35c94fcfb415dbe95f408b9ce91ee846ed",
	})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if !result.Matched || result.PickCode != "pc-seeded" {
		t.Errorf("result = %+v", result)
	}
	if f.ossPuts != 0 {
		t.Errorf("matched upload still transferred %d objects", f.ossPuts)
	}
}

func TestUploadSingleShot(t *testing.T) {
	f := &pipelineFixture{
		initResponse: `{"status":1,"statuscode":0,"pickcode":"pc1","bucket":"bkt","object":"obj",` +
			`"callback":{"callback":"cb","callback_var":"cv"}}`,
	}
	u := f.newUploader(t)

	result, err := u.Upload(context.Background(), FromBytes("b.bin", []byte("fresh content")), Options{DirID: "9"})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if result.Matched {
		t.Errorf("result unexpectedly matched")
	}
	if result.FileID != "f-oss" || result.PickCode != "pc-oss" || result.FileName != "stored.bin" {
		t.Errorf("result = %+v", result)
	}
	if string(f.ossBody) != "fresh content" {
		t.Errorf("stored body = %q", f.ossBody)
	}
}

func TestUploadAsync(t *testing.T) {
	f := &pipelineFixture{initResponse: `{"status":2,"statuscode":0,"pickcode":"pc-async"}`}
	u := f.newUploader(t)

	tk := u.UploadAsync(context.Background(), FromBytes("c.bin", []byte("x")), Options{})
	result, err := tk.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if !result.Matched || result.PickCode != "pc-async" {
		t.Errorf("result = %+v", result)
	}
}

func TestUploadDirect(t *testing.T) {
	f := &pipelineFixture{}
	u := f.newUploader(t)

	result, err := u.Upload(context.Background(), FromBytes("pic.jpg", []byte("jpeg bytes")), Options{
		DirID:        "7",
		DirectUpload: true,
	})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if result.PickCode != "pc-sample" || result.FileID != "f-sample" {
		t.Errorf("result = %+v", result)
	}
	if string(f.sampleBody) != "jpeg bytes" {
		t.Errorf("form body = %q", f.sampleBody)
	}
	if f.ossPuts != 0 {
		t.Errorf("direct upload used the object PUT path")
	}
}
