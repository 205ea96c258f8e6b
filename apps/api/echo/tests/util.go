package tests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/go-playground/validator/v10"

	. "github.com/trezcool/masomo-grading/apps/api/echo"
	"github.com/trezcool/masomo-grading/core"
	"github.com/trezcool/masomo-grading/core/grading"
	sqlxrepos "github.com/trezcool/masomo-grading/storage/database/sqlx"
	"github.com/trezcool/masomo-grading/tests"
)

// setup starts a server backed by a fresh sqlite database.
func setup(t *testing.T) (*Server, grading.Repository) {
	db := testutil.PrepareDB(t)
	repo := sqlxrepos.NewGradingRepository(db)

	conf := core.NewTestConfig()
	conf.Debug = false
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	grading.InitValidators(validate, translator)

	server := NewServer(ServerDeps{
		Conf:           conf,
		Logger:         testutil.NopLogger{},
		GradingSvc:     grading.NewService(repo, testutil.NopLogger{}, conf),
		Validate:       validate,
		Translator:     translator,
		DisableReqLogs: true,
	})
	return server, repo
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	wantCode int
	wantData []byte
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

func do(t *testing.T, server *Server, method, path string, data ...[]byte) map[string]interface{} {
	req, rec := newRequest(method, path, data...)
	server.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("%s %s failed! code = %v; body %s", method, path, rec.Code, rec.Body.String())
	}
	var res map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("%s %s: decoding body: %v", method, path, err)
	}
	return res
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	return false, nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
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
