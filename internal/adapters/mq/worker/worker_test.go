package worker_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/okian/datacheck/internal/adapters/mq/queue"
	"github.com/okian/datacheck/internal/adapters/mq/worker"
	"github.com/okian/datacheck/internal/adapters/repository"
	"github.com/okian/datacheck/internal/domain/dataset"
	"github.com/okian/datacheck/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

type fakeAssessor struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeAssessor) Assess(_ context.Context, _ *dataset.Dataset) (*model.QualityReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return &model.QualityReport{OverallScore: 77}, nil
}

type fakeDetector struct{}

func (f *fakeDetector) Detect(_ context.Context, _ *dataset.Dataset) (*model.AnomalyReport, error) {
	return &model.AnomalyReport{Applicable: true, AnomalyCount: 2}, nil
}

type fakeBuilder struct{}

func (f *fakeBuilder) Build(_ context.Context, _ string, q *model.QualityReport, a *model.AnomalyReport) *model.RecommendationSet {
	status := model.RecommendationReady
	if q == nil && a == nil {
		status = model.RecommendationDegraded
	}
	return &model.RecommendationSet{
		Status:      status,
		Items:       []model.Recommendation{{Priority: model.PriorityMedium, Issue: "x"}},
		GeneratedAt: time.Now().UTC(),
	}
}

func storeWithDataset(t *testing.T, s repository.Store) string {
	t.Helper()
	ds, err := dataset.Load("orders.csv", strings.NewReader("a,b\n1,2\n3,4\n"))
	if err != nil {
		t.Fatal(err)
	}
	id, _, err := s.Put(context.Background(), ds)
	if err != nil {
		t.Fatal(err)
	}
	return id
}

func waitForRecommendations(ctx context.Context, s repository.Store, id string) *model.RecommendationSet {
	deadline := time.After(2 * time.Second)
	for {
		select {
		case <-deadline:
			return nil
		case <-time.After(10 * time.Millisecond):
			rec, err := s.Get(ctx, id)
			if err == nil && rec.Recommendations != nil && rec.Recommendations.Status != model.RecommendationPending {
				return rec.Recommendations
			}
		}
	}
}

func TestWorker(t *testing.T) {
	ctx := context.Background()

	Convey("Given a running worker over a queue and store", t, func() {
		store := repository.NewMemStore()
		defer store.Close()
		q := queue.NewInMemoryQueue(queue.WithCapacity(8))
		assessor := &fakeAssessor{}

		w := worker.NewInMemoryWorker(q, store, assessor, &fakeDetector{}, &fakeBuilder{}, worker.WithName("test-worker"))
		runCtx, cancelRun := context.WithCancel(ctx)
		defer cancelRun()
		go w.Run(runCtx)

		Convey("When a job for a stored dataset is enqueued", func() {
			id := storeWithDataset(t, store)
			So(q.Enqueue(ctx, worker.Job{DatasetID: id, EnqueuedAt: time.Now()}), ShouldBeTrue)

			Convey("Then recommendations and missing reports are filled in", func() {
				set := waitForRecommendations(ctx, store, id)
				So(set, ShouldNotBeNil)
				So(set.Status, ShouldEqual, model.RecommendationReady)

				rec, err := store.Get(ctx, id)
				So(err, ShouldBeNil)
				So(rec.Quality, ShouldNotBeNil)
				So(rec.Quality.OverallScore, ShouldEqual, 77.0)
				So(rec.Anomaly, ShouldNotBeNil)
			})
		})

		Convey("When the dataset already has reports", func() {
			id := storeWithDataset(t, store)
			So(store.SetQuality(ctx, id, &model.QualityReport{OverallScore: 50}), ShouldBeNil)
			So(store.SetAnomaly(ctx, id, &model.AnomalyReport{Applicable: true}), ShouldBeNil)
			So(q.Enqueue(ctx, worker.Job{DatasetID: id}), ShouldBeTrue)

			Convey("Then they are reused instead of recomputed", func() {
				set := waitForRecommendations(ctx, store, id)
				So(set, ShouldNotBeNil)
				assessor.mu.Lock()
				calls := assessor.calls
				assessor.mu.Unlock()
				So(calls, ShouldEqual, 0)

				rec, err := store.Get(ctx, id)
				So(err, ShouldBeNil)
				So(rec.Quality.OverallScore, ShouldEqual, 50.0)
			})
		})

		Convey("When the dataset id is unknown", func() {
			So(q.Enqueue(ctx, worker.Job{DatasetID: "gone"}), ShouldBeTrue)

			Convey("Then the worker keeps going and serves the next job", func() {
				id := storeWithDataset(t, store)
				So(q.Enqueue(ctx, worker.Job{DatasetID: id}), ShouldBeTrue)
				So(waitForRecommendations(ctx, store, id), ShouldNotBeNil)
			})
		})

		Convey("When the worker is shut down", func() {
			sctx, cancel := context.WithTimeout(ctx, time.Second)
			defer cancel()

			Convey("Then Shutdown returns once the loop exits", func() {
				So(w.Shutdown(sctx), ShouldBeNil)
			})
		})
	})
}

func TestPool(t *testing.T) {
	ctx := context.Background()

	Convey("Given a pool of workers", t, func() {
		store := repository.NewMemStore()
		defer store.Close()
		q := queue.NewInMemoryQueue(queue.WithCapacity(32))
		pool := worker.NewPool(3, q, store, &fakeAssessor{}, &fakeDetector{}, &fakeBuilder{})
		pool.Start(ctx)

		Convey("When several jobs are enqueued", func() {
			var ids []string
			for i := 0; i < 6; i++ {
				ds, err := dataset.Load("t.csv", strings.NewReader("a\n"+string(rune('0'+i))+"\n"))
				So(err, ShouldBeNil)
				id, _, err := store.Put(ctx, ds)
				So(err, ShouldBeNil)
				ids = append(ids, id)
				So(q.Enqueue(ctx, worker.Job{DatasetID: id}), ShouldBeTrue)
			}

			Convey("Then every dataset ends up with recommendations", func() {
				for _, id := range ids {
					So(waitForRecommendations(ctx, store, id), ShouldNotBeNil)
				}
				So(pool.Shutdown(ctx), ShouldBeNil)
			})
		})
	})
}
