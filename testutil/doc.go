// Package testutil provides fixtures for package tests.
//
// This package is intended for use in tests only. Fixture wires a catalog to
// in-memory adapters and builds unplaced tables, collections and graphs.
// RNG generates rows and skewed access counts.
//
//	f := testutil.NewFixture(t, 1, 2)
//	tbl := f.Table(t, "t", testutil.Int("c1"), testutil.Varchar("c2"))
//	rows := testutil.NewRNG(42).Rows(tbl.Columns, 100)
package testutil
