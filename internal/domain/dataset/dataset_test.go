package dataset_test

import (
	"strings"
	"testing"

	"github.com/okian/datacheck/internal/domain/dataset"
	. "github.com/smartystreets/goconvey/convey"
)

func TestLoadCSV(t *testing.T) {
	Convey("Given a plain CSV upload", t, func() {
		csvData := "id,amount,active,joined\n" +
			"1,10.5,true,2024-01-15\n" +
			"2,20.25,false,2024-02-20\n" +
			"3,,true,2024-03-25\n"

		Convey("When loading it", func() {
			ds, err := dataset.Load("orders.csv", strings.NewReader(csvData))

			Convey("Then the table shape matches the input", func() {
				So(err, ShouldBeNil)
				So(ds.Rows(), ShouldEqual, 3)
				So(ds.Cols(), ShouldEqual, 4)
				So(ds.Name(), ShouldEqual, "orders.csv")
			})

			Convey("And column kinds are inferred from the data", func() {
				So(err, ShouldBeNil)
				cols := ds.Columns()
				So(cols[0].Kind, ShouldEqual, dataset.KindNumeric)
				So(cols[1].Kind, ShouldEqual, dataset.KindNumeric)
				So(cols[2].Kind, ShouldEqual, dataset.KindBoolean)
				So(cols[3].Kind, ShouldEqual, dataset.KindDatetime)
			})

			Convey("And missing cells are detected", func() {
				So(err, ShouldBeNil)
				So(ds.IsMissing(2, 1), ShouldBeTrue)
				So(ds.IsMissing(0, 1), ShouldBeFalse)
				So(ds.MissingCount(1), ShouldEqual, 1)
			})
		})
	})

	Convey("Given a semicolon-delimited file", t, func() {
		ds, err := dataset.Load("data.csv", strings.NewReader("a;b\n1;2\n3;4\n"))

		Convey("Then the delimiter is auto-detected", func() {
			So(err, ShouldBeNil)
			So(ds.Cols(), ShouldEqual, 2)
			So(ds.Rows(), ShouldEqual, 2)
			So(ds.Value(1, 1), ShouldEqual, "4")
		})
	})

	Convey("Given ragged rows", t, func() {
		ds, err := dataset.Load("r.csv", strings.NewReader("a,b,c\n1,2\n4,5,6\n"))

		Convey("Then short rows are padded with missing cells", func() {
			So(err, ShouldBeNil)
			So(ds.Rows(), ShouldEqual, 2)
			So(ds.IsMissing(0, 2), ShouldBeTrue)
			So(ds.Value(1, 2), ShouldEqual, "6")
		})
	})

	Convey("Given an empty body", t, func() {
		_, err := dataset.Load("empty.csv", strings.NewReader("  \n"))

		Convey("Then ErrEmptyInput is returned", func() {
			So(err, ShouldEqual, dataset.ErrEmptyInput)
		})
	})

	Convey("Given an unsupported extension", t, func() {
		_, err := dataset.Load("doc.pdf", strings.NewReader("x"))

		Convey("Then ErrUnsupportedFormat is wrapped", func() {
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "unsupported")
		})
	})

	Convey("Given a row cap", t, func() {
		ds, err := dataset.Load("big.csv", strings.NewReader("a\n1\n2\n3\n4\n"), dataset.WithMaxRows(2))

		Convey("Then only the first rows are kept", func() {
			So(err, ShouldBeNil)
			So(ds.Rows(), ShouldEqual, 2)
		})
	})

	Convey("Given a size cap smaller than the body", t, func() {
		_, err := dataset.Load("big.csv", strings.NewReader("a,b\n1,2\n"), dataset.WithMaxBytes(4))

		Convey("Then ErrTooLarge is wrapped", func() {
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "size limit")
		})
	})
}

func TestTypedAccess(t *testing.T) {
	Convey("Given a mixed-type dataset", t, func() {
		ds, err := dataset.Load("m.csv", strings.NewReader("n,s\n1.5,hello\nNaN?,world\n"))
		So(err, ShouldBeNil)

		Convey("Then Float parses numeric cells and rejects the rest", func() {
			f, ok := ds.Float(0, 0)
			So(ok, ShouldBeTrue)
			So(f, ShouldEqual, 1.5)

			_, ok = ds.Float(1, 0)
			So(ok, ShouldBeFalse)

			_, ok = ds.Float(0, 1)
			So(ok, ShouldBeFalse)
		})

		Convey("Then ConformsToKind flags stray tokens in numeric columns", func() {
			So(ds.ConformsToKind(0, 0), ShouldBeTrue)
			So(ds.ConformsToKind(0, 1), ShouldBeTrue) // text conforms trivially
		})
	})

	Convey("Given a column of comma-formatted numbers", t, func() {
		ds, err := dataset.Load("amounts.csv", strings.NewReader("amount\n\"1,234\"\n\"5,678.5\"\n42\n"))
		So(err, ShouldBeNil)

		Convey("Then the column is inferred numeric", func() {
			So(ds.Columns()[0].Kind, ShouldEqual, dataset.KindNumeric)
		})

		Convey("Then Float reads every value the inference accepted", func() {
			f, ok := ds.Float(0, 0)
			So(ok, ShouldBeTrue)
			So(f, ShouldEqual, 1234)

			f, ok = ds.Float(1, 0)
			So(ok, ShouldBeTrue)
			So(f, ShouldEqual, 5678.5)

			for r := 0; r < ds.Rows(); r++ {
				So(ds.ConformsToKind(r, 0), ShouldBeTrue)
			}
		})
	})
}

func TestChecksumAndRowKeys(t *testing.T) {
	Convey("Given two datasets with identical content", t, func() {
		body := "a,b\n1,2\n1,2\n3,4\n"
		first, err := dataset.Load("one.csv", strings.NewReader(body))
		So(err, ShouldBeNil)
		second, err := dataset.Load("two.csv", strings.NewReader(body))
		So(err, ShouldBeNil)

		Convey("Then their checksums match regardless of name", func() {
			So(first.Checksum(), ShouldEqual, second.Checksum())
		})

		Convey("Then identical rows share a row key and distinct rows do not", func() {
			So(first.RowKey(0), ShouldEqual, first.RowKey(1))
			So(first.RowKey(0), ShouldNotEqual, first.RowKey(2))
		})
	})

	Convey("Given datasets that differ by one cell", t, func() {
		first, err := dataset.Load("one.csv", strings.NewReader("a\n1\n"))
		So(err, ShouldBeNil)
		second, err := dataset.Load("one.csv", strings.NewReader("a\n2\n"))
		So(err, ShouldBeNil)

		Convey("Then the checksums differ", func() {
			So(first.Checksum(), ShouldNotEqual, second.Checksum())
		})
	})
}
