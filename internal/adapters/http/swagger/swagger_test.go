package swagger_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/okian/datacheck/internal/adapters/http/swagger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestRegister(t *testing.T) {
	Convey("Given a mux with the docs routes registered", t, func() {
		mux := http.NewServeMux()
		swagger.Register(context.Background(), mux)

		Convey("Then /openapi.yaml serves the spec", func() {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/openapi.yaml", nil))
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(rec.Header().Get("Content-Type"), ShouldContainSubstring, "yaml")
			body := rec.Body.String()
			So(body, ShouldContainSubstring, "openapi:")
			So(body, ShouldContainSubstring, "/datasets/{id}/quality")
			So(body, ShouldContainSubstring, "/datasets/{id}/recommendations")
		})

		Convey("Then /api-docs serves the ReDoc page", func() {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api-docs", nil))
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(rec.Header().Get("Content-Type"), ShouldContainSubstring, "text/html")
			So(rec.Body.String(), ShouldContainSubstring, "Redoc.init('/openapi.yaml'")
		})

		Convey("Then registering on a nil mux panics", func() {
			So(func() { swagger.Register(context.Background(), nil) }, ShouldPanic)
		})
	})
}

func TestSpecIsWellFormedish(t *testing.T) {
	Convey("Given the embedded spec", t, func() {
		spec := string(swagger.OpenAPI)

		Convey("Then every documented route appears", func() {
			for _, route := range []string{
				"/datasets:", "/datasets/{id}:", "/datasets/{id}/quality:",
				"/datasets/{id}/anomalies:", "/datasets/{id}/recommendations:",
				"/stats:", "/healthz:",
			} {
				So(strings.Contains(spec, route), ShouldBeTrue)
			}
		})
	})
}
