package pointcloud

import (
	"path/filepath"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func testStore(t *testing.T, store Store) {
	t.Helper()
	a := Point{Position: r3.Vector{X: 1}, Label: 255}
	b := Point{Position: r3.Vector{Y: 1}, Label: 3}

	test.That(t, store.Reset("merged"), test.ShouldBeNil)
	test.That(t, store.Append("merged", []Point{a}), test.ShouldBeNil)
	test.That(t, store.Append("merged", []Point{b}), test.ShouldBeNil)
	cloud, err := store.Load("merged")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cloud.Size(), test.ShouldEqual, 2)
	test.That(t, cloud.At(1).Position, test.ShouldResemble, b.Position)

	test.That(t, store.Reset("merged"), test.ShouldBeNil)
	cloud, err = store.Load("merged")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cloud.Size(), test.ShouldEqual, 0)

	_, err = store.Load("missing")
	test.That(t, err, test.ShouldNotBeNil)
}

func TestDirStore(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "Lines")
	store, err := NewDirStore(dir)
	test.That(t, err, test.ShouldBeNil)
	testStore(t, store)

	path, err := store.Path("01")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, path, test.ShouldEqual, filepath.Join(dir, "01.txt"))
	_, err = store.Path("../escape")
	test.That(t, err, test.ShouldNotBeNil)
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	testStore(t, store)
	test.That(t, store.Names(), test.ShouldResemble, []string{"merged"})
}
