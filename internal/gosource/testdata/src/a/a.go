package a

import "models"

// Count is not a test; the analyzer only looks at _test.go files.
func Count() int {
	rows := models.Widget.Objects.All()
	if rows.At(0).Value == rows.At(1).Value {
		return 1
	}
	return rows.Len()
}
