package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestHTTPStatus(t *testing.T) {
	cases := map[int]int{
		CodeOK:         http.StatusOK,
		CodeBadRequest: http.StatusBadRequest,
		CodeNotFound:   http.StatusNotFound,
		CodeConflict:   http.StatusConflict,
		CodeUpstream:   http.StatusBadGateway,
		CodeInternal:   http.StatusInternalServerError,
		12345:          http.StatusInternalServerError,
	}
	for code, want := range cases {
		if got := HTTPStatus(code); got != want {
			t.Fatalf("code %d: want %d got %d", code, want, got)
		}
	}
}

func TestErrorKeepsEnvelopeOnHTTP200(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Set("request_id", "rid-1")

	Conflict(c, "out of stock")

	if w.Code != http.StatusOK {
		t.Fatalf("expected http 200, got %d", w.Code)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body failed: %v", err)
	}
	if body["status_code"] != float64(CodeConflict) || body["msg"] != "out of stock" {
		t.Fatalf("unexpected body: %v", body)
	}
	data, _ := body["data"].(map[string]interface{})
	if data["request_id"] != "rid-1" {
		t.Fatalf("expected request id in data, got %v", body["data"])
	}
}

func TestErrorWithStatusUsesRealStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	ErrorWithStatus(c, CodeNotFound, "unknown reference", gin.H{"reference": "R1"})

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected http 404, got %d", w.Code)
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	base := errors.New("boom")
	err := WrapError(CodeInternal, "failed", base)
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error")
	}
	if err.Error() != "failed: boom" {
		t.Fatalf("unexpected message: %s", err.Error())
	}
}

func TestBuildPagination(t *testing.T) {
	p := BuildPagination(2, 10, 21)
	if p.TotalPage != 3 || p.Page != 2 || p.Total != 21 {
		t.Fatalf("unexpected pagination: %+v", p)
	}
	if got := BuildPagination(1, 0, 5); got.TotalPage != 0 {
		t.Fatalf("zero page size should give zero pages, got %d", got.TotalPage)
	}
}
