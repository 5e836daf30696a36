package tests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	. "github.com/trezcool/tuutta/apps/api/echo"
	"github.com/trezcool/tuutta/tests"
)

type httpErr struct {
	Error string `json:"error"`
}

type policyErr struct {
	Error string `json:"error"`
	Rule  string `json:"rule"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	wantCode int
	wantData []byte
}

// newServer returns a Server running on fresh in-memory storage.
func newServer(t *testing.T) (*Server, testutil.Services) {
	t.Helper()

	svcs := testutil.NewServices(t)
	app := NewServer(
		"",  /* addr */
		nil, /* shutdown */
		ServerDeps{
			TestMode:       true,
			DisableReqLogs: true,
			Logger:         svcs.Logger,
			Validate:       svcs.Validate,
			Translator:     svcs.Translator,
			Enrollments:    svcs.Enrollments,
			Tracker:        svcs.Tracker,
			Assessments:    svcs.Assessments,
			Certificates:   svcs.Certificates,
			Activities:     svcs.Activities,
		},
	)
	return app, svcs
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	return req, rec
}

// do serves a single request and returns the recorder.
func do(app *Server, method, path string, data ...[]byte) *httptest.ResponseRecorder {
	req, rec := newRequest(method, path, data...)
	app.ServeHTTP(rec, req)
	return rec
}

func marshallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshallObj(): %v", err)
	}
	return data
}

func marshallList(t *testing.T, objs ...interface{}) []byte {
	if objs == nil {
		objs = []interface{}{}
	}
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marshallList(): %v", err)
	}
	return data
}

func unmarshall(t *testing.T, rec *httptest.ResponseRecorder, dest interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dest); err != nil {
		t.Fatalf("json.Unmarshal(%s): %v", rec.Body.String(), err)
	}
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v; body %s", rec.Code, tt.wantCode, rec.Body.String())
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func runHTTPTests(t *testing.T, app *Server, tests []httpTest) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := tt.method
			if method == "" {
				method = http.MethodGet
			}
			rec := do(app, method, tt.path, tt.body)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func TestServer_home(t *testing.T) {
	app, _ := newServer(t)

	rec := do(app, http.MethodGet, "/")
	if rec.Code != http.StatusOK || rec.Body.String() != "Welcome to Tuutta API!" {
		t.Errorf("GET / = %d %q", rec.Code, rec.Body.String())
	}
}
