package anomaly_test

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"testing"

	"github.com/okian/datacheck/internal/domain/anomaly"
	"github.com/okian/datacheck/internal/domain/dataset"
	. "github.com/smartystreets/goconvey/convey"
)

func mustLoad(body string) *dataset.Dataset {
	ds, err := dataset.Load("test.csv", strings.NewReader(body))
	if err != nil {
		panic(err)
	}
	return ds
}

// outlierTable builds n well-behaved rows around two correlated gaussians
// plus a few extreme rows appended at the end.
func outlierTable(n, extremes int) (*dataset.Dataset, []int) {
	rng := rand.New(rand.NewSource(11))
	var b strings.Builder
	b.WriteString("x,y\n")
	for i := 0; i < n; i++ {
		x := rng.NormFloat64()*2 + 50
		fmt.Fprintf(&b, "%.4f,%.4f\n", x, x*0.5+rng.NormFloat64())
	}
	var planted []int
	for i := 0; i < extremes; i++ {
		planted = append(planted, n+i)
		fmt.Fprintf(&b, "%.4f,%.4f\n", 500.0+float64(i), -300.0-float64(i))
	}
	return mustLoad(b.String()), planted
}

func TestPreprocess(t *testing.T) {
	Convey("Given a table with mixed column kinds", t, func() {
		ds := mustLoad("amount,active,when,tier\n" +
			"1.5,true,2024-01-01,gold\n" +
			"2.5,false,2024-01-02,silver\n" +
			"3.5,true,2024-01-03,gold\n" +
			"4.5,false,2024-01-04,silver\n")

		Convey("Then every kind becomes a feature column", func() {
			f := anomaly.Preprocess(ds)
			So(f.Columns, ShouldResemble, []string{"amount", "active", "when", "tier"})
			So(f.Rows(), ShouldEqual, 4)
			// Booleans map to 0/1.
			So(f.Raw[0][1], ShouldEqual, 1.0)
			So(f.Raw[1][1], ShouldEqual, 0.0)
			// Label encoding follows sorted distinct values: gold=0, silver=1.
			So(f.Raw[0][3], ShouldEqual, 0.0)
			So(f.Raw[1][3], ShouldEqual, 1.0)
		})

		Convey("Then scaled columns are centered", func() {
			f := anomaly.Preprocess(ds)
			for c := range f.Columns {
				sum := 0.0
				for r := range f.Scaled {
					sum += f.Scaled[r][c]
				}
				So(sum, ShouldAlmostEqual, 0, 1e-9)
			}
		})
	})

	Convey("Given missing cells", t, func() {
		ds := mustLoad("a,b\n1,10\n,20\n3,30\n")

		Convey("Then they are imputed with the column mean", func() {
			f := anomaly.Preprocess(ds)
			So(f.Rows(), ShouldEqual, 3)
			So(f.Raw[1][0], ShouldEqual, 2.0)
		})
	})

	Convey("Given a row that is missing in every feature column", t, func() {
		ds := mustLoad("a,b\n1,10\n,\n3,30\n")

		Convey("Then the row is dropped and the index map skips it", func() {
			f := anomaly.Preprocess(ds)
			So(f.Rows(), ShouldEqual, 2)
			So(f.RowIndex, ShouldResemble, []int{0, 2})
		})
	})

	Convey("Given only an identifier-like text column", t, func() {
		ds := mustLoad("id\nuser-1\nuser-2\nuser-3\nuser-4\n")

		Convey("Then no features are produced", func() {
			f := anomaly.Preprocess(ds)
			So(f.Columns, ShouldBeEmpty)
		})
	})
}

func TestDetectors(t *testing.T) {
	ctx := context.Background()
	ds, planted := outlierTable(100, 3)
	features := anomaly.Preprocess(ds)

	detectors := []anomaly.Detector{
		anomaly.NewIsolationForest(0.1, 42),
		anomaly.NewLOF(0.1),
		anomaly.NewMahalanobis(0.1),
	}

	for _, d := range detectors {
		d := d
		Convey("Given the "+d.Name()+" detector on data with planted extremes", t, func() {
			flags, scores, err := d.FitPredict(ctx, features.Scaled)
			So(err, ShouldBeNil)
			So(len(flags), ShouldEqual, features.Rows())
			So(len(scores), ShouldEqual, features.Rows())

			Convey("Then each planted row is flagged", func() {
				for _, idx := range planted {
					So(flags[idx], ShouldBeTrue)
				}
			})

			Convey("Then roughly the contamination fraction is flagged", func() {
				n := 0
				for _, f := range flags {
					if f {
						n++
					}
				}
				So(n, ShouldBeGreaterThanOrEqualTo, 1)
				So(n, ShouldBeLessThanOrEqualTo, int(0.1*float64(features.Rows()))+1)
			})

			Convey("Then a second run reproduces the same flags", func() {
				again, _, err := d.FitPredict(ctx, features.Scaled)
				So(err, ShouldBeNil)
				So(again, ShouldResemble, flags)
			})
		})
	}

	Convey("Given fewer than two rows", t, func() {
		for _, d := range detectors {
			_, _, err := d.FitPredict(ctx, [][]float64{{1, 2}})
			So(err, ShouldEqual, anomaly.ErrInsufficientData)
		}
	})
}

// fixedDetector flags a preset row set, for voting tests.
type fixedDetector struct {
	name    string
	flagged map[int]bool
}

func (f *fixedDetector) Name() string { return f.name }

func (f *fixedDetector) FitPredict(_ context.Context, m [][]float64) ([]bool, []float64, error) {
	flags := make([]bool, len(m))
	scores := make([]float64, len(m))
	for i := range flags {
		flags[i] = f.flagged[i]
	}
	return flags, scores, nil
}

func TestEnsemble(t *testing.T) {
	ctx := context.Background()

	Convey("Given a table with planted extreme rows", t, func() {
		ds, planted := outlierTable(120, 4)
		e := anomaly.NewEnsemble(anomaly.WithSeed(42))

		Convey("When detecting anomalies", func() {
			report, err := e.Detect(ctx, ds)
			So(err, ShouldBeNil)

			Convey("Then the report is applicable and finds the planted rows", func() {
				So(report.Applicable, ShouldBeTrue)
				So(report.AnomalyCount, ShouldBeGreaterThanOrEqualTo, len(planted))
				found := make(map[int]bool, len(report.AnomalyIndices))
				for _, idx := range report.AnomalyIndices {
					found[idx] = true
				}
				for _, idx := range planted {
					So(found[idx], ShouldBeTrue)
				}
			})

			Convey("Then the anomaly rate stays near the contamination level", func() {
				So(report.AnomalyPercentage, ShouldBeLessThanOrEqualTo, 15.0)
			})

			Convey("Then feature importances are normalized", func() {
				sum := 0.0
				for _, v := range report.FeatureImportance {
					So(v, ShouldBeGreaterThanOrEqualTo, 0)
					sum += v
				}
				So(sum, ShouldAlmostEqual, 1.0, 0.01)
			})

			Convey("Then every detector reports its own result", func() {
				So(report.ModelResults, ShouldContainKey, anomaly.NameIsolationForest)
				So(report.ModelResults, ShouldContainKey, anomaly.NameLOF)
				So(report.ModelResults, ShouldContainKey, anomaly.NameMahalanobis)
			})

			Convey("Then a repeated run returns identical indices", func() {
				again, err := e.Detect(ctx, ds)
				So(err, ShouldBeNil)
				So(again.AnomalyIndices, ShouldResemble, report.AnomalyIndices)
			})
		})
	})

	Convey("Given a table with fewer than the minimum rows", t, func() {
		ds := mustLoad("x\n1\n2\n3\n")
		report, err := anomaly.NewEnsemble().Detect(ctx, ds)

		Convey("Then the report is not applicable, without an error", func() {
			So(err, ShouldBeNil)
			So(report.Applicable, ShouldBeFalse)
			So(report.Reason, ShouldNotBeEmpty)
			So(report.AnomalyCount, ShouldEqual, 0)
		})
	})

	Convey("Given a table with no encodable features", t, func() {
		var b strings.Builder
		b.WriteString("id\n")
		for i := 0; i < 20; i++ {
			fmt.Fprintf(&b, "user-%d\n", i)
		}
		report, err := anomaly.NewEnsemble().Detect(ctx, mustLoad(b.String()))

		Convey("Then the report is not applicable", func() {
			So(err, ShouldBeNil)
			So(report.Applicable, ShouldBeFalse)
			So(report.Reason, ShouldNotBeEmpty)
		})
	})

	Convey("Given detectors that disagree", t, func() {
		var b strings.Builder
		b.WriteString("x\n")
		for i := 0; i < 20; i++ {
			fmt.Fprintf(&b, "%d\n", i)
		}
		ds := mustLoad(b.String())

		both := map[int]bool{0: true}
		one := map[int]bool{1: true}
		e := anomaly.NewEnsemble(
			anomaly.WithQuorum(2),
			anomaly.WithDetectors(
				&fixedDetector{name: "a", flagged: both},
				&fixedDetector{name: "b", flagged: both},
				&fixedDetector{name: "c", flagged: one},
			),
		)

		Convey("Then only rows with a quorum of votes are anomalous", func() {
			report, err := e.Detect(ctx, ds)
			So(err, ShouldBeNil)
			So(report.AnomalyIndices, ShouldResemble, []int{0})
			So(report.ModelResults["c"].AnomalyCount, ShouldEqual, 1)
		})

		Convey("Then a quorum of one unions the votes", func() {
			loose := anomaly.NewEnsemble(
				anomaly.WithQuorum(1),
				anomaly.WithDetectors(
					&fixedDetector{name: "a", flagged: both},
					&fixedDetector{name: "c", flagged: one},
				),
			)
			report, err := loose.Detect(ctx, ds)
			So(err, ShouldBeNil)
			So(report.AnomalyIndices, ShouldResemble, []int{0, 1})
		})
	})
}

func TestInvertMatrixViaMahalanobis(t *testing.T) {
	Convey("Given perfectly collinear features", t, func() {
		m := make([][]float64, 30)
		for i := range m {
			v := float64(i)
			m[i] = []float64{v, 2 * v}
		}

		Convey("Then the ridge keeps the envelope fit from failing", func() {
			flags, scores, err := anomaly.NewMahalanobis(0.1).FitPredict(context.Background(), m)
			So(err, ShouldBeNil)
			So(len(flags), ShouldEqual, 30)
			for _, s := range scores {
				So(math.IsNaN(s), ShouldBeFalse)
			}
		})
	})
}
