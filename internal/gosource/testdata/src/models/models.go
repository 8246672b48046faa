package models

import "queryset"

var (
	Widget  = queryset.Register("Widget")
	Article = queryset.Register("Article", queryset.OrderBy("Name"))
)
