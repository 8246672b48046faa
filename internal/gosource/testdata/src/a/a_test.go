package a

import (
	"testing"

	"assert"
	"models"
)

func TestFlaky(t *testing.T) { // want `possible flaky test TestFlaky: rows asserted at positions \[0 1\]`
	rows := models.Widget.Objects.All()
	if rows.At(0).Value != 1 {
		t.Errorf("first = %d", rows.At(0).Value)
	}
	if rows.At(1).Value != 2 {
		t.Fatalf("second = %d", rows.At(1).Value)
	}
}

func TestAssertStyle(t *testing.T) { // want `possible flaky test TestAssertStyle`
	rows := models.Widget.Objects.All()
	assert.Equal(t, 1, rows.At(0).Value)
	assert.Equal(t, 2, rows.At(-1).Value)
}

func TestSingleIndex(t *testing.T) {
	rows := models.Widget.Objects.All()
	assert.Equal(t, 1, rows.At(0).Value)
	assert.Equal(t, "a", rows.At(0).Name)
}

func TestOrderedModel(t *testing.T) {
	rows := models.Article.Objects.All()
	assert.Equal(t, 1, rows.At(0).Value)
	assert.Equal(t, 2, rows.At(1).Value)
}

func TestExplicitOrderBy(t *testing.T) {
	rows := models.Widget.Objects.OrderBy("ID").All()
	assert.Equal(t, 1, rows.At(0).Value)
	assert.Equal(t, 2, rows.At(1).Value)
}

func TestSubtest(t *testing.T) { // want `possible flaky test TestSubtest`
	t.Run("nested", func(t *testing.T) {
		rows := models.Widget.Objects.All()
		assert.Equal(t, 1, rows.At(0).Value)
		assert.Equal(t, 2, rows.At(2).Value)
	})
}

func TestCompoundCondition(t *testing.T) { // want `possible flaky test TestCompoundCondition: rows asserted at positions \[0 1\]`
	rows := models.Widget.Objects.All()
	if rows.At(0).Value != 1 || rows.At(1).Value != 2 {
		t.Error("unexpected order")
	}
}

func TestReboundNotFollowed(t *testing.T) {
	rows := models.Widget.Objects.All()
	first := rows.At(0)
	assert.Equal(t, 1, first.Value)
	assert.Equal(t, 2, rows.At(1).Value)
}

func helperNotATest(t *testing.T) {
	rows := models.Widget.Objects.All()
	assert.Equal(t, 1, rows.At(0).Value)
	assert.Equal(t, 2, rows.At(1).Value)
}
