package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/okian/datacheck/internal/adapters/http/api"
	"github.com/okian/datacheck/internal/domain/dataset"
	"github.com/okian/datacheck/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

// Mock implementations for testing
type mockDeps struct {
	summaries  map[string]model.DatasetSummary
	uploads    int
	uploadErr  error
	duplicate  bool
	quality    *model.QualityReport
	anomaly    *model.AnomalyReport
	recs       *model.RecommendationSet
	recsErr    error
	requestOK  bool
	requestErr error
	lastName   string
	lastBody   string
}

var errMockNotFound = errors.New("dataset not found")

func (m *mockDeps) Upload(_ context.Context, name string, r io.Reader) (model.DatasetSummary, bool, error) {
	if m.uploadErr != nil {
		return model.DatasetSummary{}, false, m.uploadErr
	}
	body, _ := io.ReadAll(r)
	m.uploads++
	m.lastName = name
	m.lastBody = string(body)
	summary := model.DatasetSummary{
		ID:        "ds-1",
		Name:      name,
		Rows:      3,
		Columns:   []model.ColumnSummary{{Name: "a", Type: "numeric"}},
		CreatedAt: time.Now().UTC(),
	}
	return summary, m.duplicate, nil
}

func (m *mockDeps) Dataset(_ context.Context, id string) (model.DatasetSummary, error) {
	summary, ok := m.summaries[id]
	if !ok {
		return model.DatasetSummary{}, errMockNotFound
	}
	return summary, nil
}

func (m *mockDeps) Quality(_ context.Context, id string) (*model.QualityReport, error) {
	if _, ok := m.summaries[id]; !ok {
		return nil, errMockNotFound
	}
	return m.quality, nil
}

func (m *mockDeps) Anomalies(_ context.Context, id string) (*model.AnomalyReport, error) {
	if _, ok := m.summaries[id]; !ok {
		return nil, errMockNotFound
	}
	return m.anomaly, nil
}

func (m *mockDeps) RequestRecommendations(_ context.Context, id string) (bool, error) {
	if m.requestErr != nil {
		return false, m.requestErr
	}
	if _, ok := m.summaries[id]; !ok {
		return false, errMockNotFound
	}
	return m.requestOK, nil
}

func (m *mockDeps) Recommendations(_ context.Context, id string) (*model.RecommendationSet, error) {
	if m.recsErr != nil {
		return nil, m.recsErr
	}
	if _, ok := m.summaries[id]; !ok {
		return nil, errMockNotFound
	}
	return m.recs, nil
}

type mockStats struct{}

func (mockStats) GetStats() map[string]interface{} {
	return map[string]interface{}{"started": true, "datasets": 2}
}

func newTestServer(deps *mockDeps) *httptest.Server {
	mux := http.NewServeMux()
	api.NewServer(deps, mockStats{}).Register(context.Background(), mux)
	return httptest.NewServer(mux)
}

func knownDeps() *mockDeps {
	return &mockDeps{
		summaries: map[string]model.DatasetSummary{
			"ds-1": {ID: "ds-1", Name: "orders.csv", Rows: 3},
		},
		quality:   &model.QualityReport{OverallScore: 91.5},
		anomaly:   &model.AnomalyReport{Applicable: true},
		recs:      &model.RecommendationSet{Status: model.RecommendationReady, Items: []model.Recommendation{{Issue: "x", Recommendation: "y"}}},
		requestOK: true,
	}
}

func TestUploadEndpoint(t *testing.T) {
	Convey("Given the API server", t, func() {
		deps := knownDeps()
		srv := newTestServer(deps)
		defer srv.Close()

		Convey("When a raw CSV body is posted", func() {
			resp, err := http.Post(srv.URL+"/datasets?name=orders.csv", "text/csv", strings.NewReader("a\n1\n2\n3\n"))
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			Convey("Then a summary is returned with 201", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusCreated)
				var summary model.DatasetSummary
				So(json.NewDecoder(resp.Body).Decode(&summary), ShouldBeNil)
				So(summary.ID, ShouldEqual, "ds-1")
				So(deps.lastName, ShouldEqual, "orders.csv")
				So(deps.lastBody, ShouldStartWith, "a\n")
			})
		})

		Convey("When a raw body is posted without a name", func() {
			resp, err := http.Post(srv.URL+"/datasets", "text/csv", strings.NewReader("a\n1\n"))
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			Convey("Then the default name is used", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusCreated)
				So(deps.lastName, ShouldEqual, "upload.csv")
			})
		})

		Convey("When a multipart form is posted", func() {
			var buf bytes.Buffer
			mw := multipart.NewWriter(&buf)
			fw, err := mw.CreateFormFile("file", "sales.csv")
			So(err, ShouldBeNil)
			fmt.Fprint(fw, "a,b\n1,2\n")
			So(mw.Close(), ShouldBeNil)

			resp, err := http.Post(srv.URL+"/datasets", mw.FormDataContentType(), &buf)
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			Convey("Then the form filename wins", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusCreated)
				So(deps.lastName, ShouldEqual, "sales.csv")
				So(deps.lastBody, ShouldEqual, "a,b\n1,2\n")
			})
		})

		Convey("When the same bytes are uploaded twice", func() {
			deps.duplicate = true
			resp, err := http.Post(srv.URL+"/datasets", "text/csv", strings.NewReader("a\n1\n"))
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			Convey("Then the existing summary comes back with 200", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
			})
		})

		Convey("When the upload is empty", func() {
			deps.uploadErr = fmt.Errorf("load dataset: %w", dataset.ErrEmptyInput)
			resp, err := http.Post(srv.URL+"/datasets", "text/csv", strings.NewReader(""))
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the upload is too large", func() {
			deps.uploadErr = fmt.Errorf("load dataset: %w", dataset.ErrTooLarge)
			resp, err := http.Post(srv.URL+"/datasets", "text/csv", strings.NewReader("a\n1\n"))
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			So(resp.StatusCode, ShouldEqual, http.StatusRequestEntityTooLarge)
		})

		Convey("When the method is not POST", func() {
			resp, err := http.Get(srv.URL + "/datasets")
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			So(resp.StatusCode, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestDatasetEndpoints(t *testing.T) {
	Convey("Given the API server with one stored dataset", t, func() {
		deps := knownDeps()
		srv := newTestServer(deps)
		defer srv.Close()

		Convey("When fetching the dataset summary", func() {
			resp, err := http.Get(srv.URL + "/datasets/ds-1")
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			So(resp.StatusCode, ShouldEqual, http.StatusOK)
			var summary model.DatasetSummary
			So(json.NewDecoder(resp.Body).Decode(&summary), ShouldBeNil)
			So(summary.Name, ShouldEqual, "orders.csv")
		})

		Convey("When fetching an unknown dataset", func() {
			resp, err := http.Get(srv.URL + "/datasets/missing")
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			So(resp.StatusCode, ShouldEqual, http.StatusNotFound)
			var body map[string]string
			So(json.NewDecoder(resp.Body).Decode(&body), ShouldBeNil)
			So(body["code"], ShouldEqual, "not_found")
		})

		Convey("When fetching the quality report", func() {
			resp, err := http.Get(srv.URL + "/datasets/ds-1/quality")
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			So(resp.StatusCode, ShouldEqual, http.StatusOK)
			var report model.QualityReport
			So(json.NewDecoder(resp.Body).Decode(&report), ShouldBeNil)
			So(report.OverallScore, ShouldEqual, 91.5)
		})

		Convey("When fetching the anomaly report", func() {
			resp, err := http.Get(srv.URL + "/datasets/ds-1/anomalies")
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			So(resp.StatusCode, ShouldEqual, http.StatusOK)
			var report model.AnomalyReport
			So(json.NewDecoder(resp.Body).Decode(&report), ShouldBeNil)
			So(report.Applicable, ShouldBeTrue)
		})

		Convey("When the id is empty", func() {
			resp, err := http.Get(srv.URL + "/datasets/")
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the subresource is unknown", func() {
			resp, err := http.Get(srv.URL + "/datasets/ds-1/ranking")
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			So(resp.StatusCode, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestRecommendationEndpoints(t *testing.T) {
	Convey("Given the API server with one stored dataset", t, func() {
		deps := knownDeps()
		srv := newTestServer(deps)
		defer srv.Close()

		Convey("When requesting recommendation generation", func() {
			resp, err := http.Post(srv.URL+"/datasets/ds-1/recommendations", "", nil)
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			Convey("Then the job is accepted", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusAccepted)
				var body map[string]string
				So(json.NewDecoder(resp.Body).Decode(&body), ShouldBeNil)
				So(body["status"], ShouldEqual, "accepted")
			})
		})

		Convey("When the job queue is full", func() {
			deps.requestOK = false
			resp, err := http.Post(srv.URL+"/datasets/ds-1/recommendations", "", nil)
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			So(resp.StatusCode, ShouldEqual, http.StatusTooManyRequests)
		})

		Convey("When fetching the recommendation set", func() {
			resp, err := http.Get(srv.URL + "/datasets/ds-1/recommendations")
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			So(resp.StatusCode, ShouldEqual, http.StatusOK)
			var set model.RecommendationSet
			So(json.NewDecoder(resp.Body).Decode(&set), ShouldBeNil)
			So(set.Status, ShouldEqual, model.RecommendationReady)
			So(len(set.Items), ShouldEqual, 1)
		})

		Convey("When recommendations were never requested", func() {
			deps.recsErr = errors.New("recommendations not found for dataset ds-1; request generation first")
			resp, err := http.Get(srv.URL + "/datasets/ds-1/recommendations")
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			So(resp.StatusCode, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestOperationalEndpoints(t *testing.T) {
	Convey("Given the API server", t, func() {
		srv := newTestServer(knownDeps())
		defer srv.Close()

		Convey("When scraping /healthz", func() {
			resp, err := http.Get(srv.URL + "/healthz")
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			So(resp.StatusCode, ShouldEqual, http.StatusOK)
			body, err := io.ReadAll(resp.Body)
			So(err, ShouldBeNil)
			So(string(body), ShouldContainSubstring, "datacheck_quality")
		})

		Convey("When fetching /stats", func() {
			resp, err := http.Get(srv.URL + "/stats")
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			So(resp.StatusCode, ShouldEqual, http.StatusOK)
			var stats map[string]interface{}
			So(json.NewDecoder(resp.Body).Decode(&stats), ShouldBeNil)
			So(stats["started"], ShouldEqual, true)
		})

		Convey("When fetching /dashboard", func() {
			resp, err := http.Get(srv.URL + "/dashboard")
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			So(resp.StatusCode, ShouldEqual, http.StatusOK)
			So(resp.Header.Get("Content-Type"), ShouldContainSubstring, "text/html")
		})
	})
}
