package repository

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestDialect(t *testing.T) {
	Convey("Given the postgres dialect", t, func() {
		d, ok := dialectFor(DriverPostgres)
		So(ok, ShouldBeTrue)

		Convey("Then placeholders are numbered", func() {
			So(d.rebind("UPDATE t SET a = ? WHERE b = ?"), ShouldEqual, "UPDATE t SET a = $1 WHERE b = $2")
		})
	})

	Convey("Given the sqlite dialect", t, func() {
		d, ok := dialectFor(DriverSQLite)
		So(ok, ShouldBeTrue)

		Convey("Then placeholders are left alone", func() {
			So(d.rebind("SELECT ? "), ShouldEqual, "SELECT ? ")
			So(d.maxOpenConns, ShouldEqual, 1)
		})

		Convey("Then pragmas are appended once", func() {
			So(sqliteDSN("riders.db"), ShouldStartWith, "riders.db?_pragma=foreign_keys(1)")
			So(sqliteDSN("file:x.db?mode=rwc"), ShouldContainSubstring, "&_pragma=")
			So(sqliteDSN("x.db?_pragma=foreign_keys(1)"), ShouldEqual, "x.db?_pragma=foreign_keys(1)")
		})
	})

	Convey("Given dependent table options", t, func() {
		s := &SQLStore{dependentTables: defaultDependentTables}
		WithDependentTables("results", "bad name;", "entries")(s)

		Convey("Then only plain identifiers are kept", func() {
			So(s.dependentTables, ShouldResemble, []string{"results", "entries"})
		})
	})
}
